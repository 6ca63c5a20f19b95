package chapters

type CreateChapterPayload struct {
	Title       string  `json:"title" validate:"required,notblank,max=300" mod:"trim"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	ParentID    *int    `json:"parent_id,omitempty" validate:"omitempty,min=1"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}

// CreateChildPayload is CreateChapterPayload without a parent; the parent
// comes from the route.
type CreateChildPayload struct {
	Title       string  `json:"title" validate:"required,notblank,max=300" mod:"trim"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}

type UpdateChapterPayload struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,notblank,max=300" mod:"trim"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}

type SetSortOrderPayload struct {
	SortOrder *int `json:"sort_order" validate:"required"`
}

type MoveChapterPayload struct {
	// A missing or null new_parent_id moves the chapter to the root.
	NewParentID  *int `json:"new_parent_id" validate:"omitempty,min=1"`
	NewSortOrder *int `json:"new_sort_order,omitempty"`
}

type BatchReorderPayload struct {
	ParentID   *int  `json:"parent_id,omitempty" validate:"omitempty,min=1"`
	ChapterIDs []int `json:"chapter_ids" validate:"required,min=1,dive,min=1"`
}

type SearchChaptersQuery struct {
	Q string `query:"q" json:"q" validate:"required,notblank,max=200" mod:"trim"`
}
