package books

type ListBooksQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type CreateBookPayload struct {
	Title       string  `json:"title" validate:"required,notblank,max=300" mod:"trim"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
}

type UpdateBookPayload struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,notblank,max=300" mod:"trim"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
}
