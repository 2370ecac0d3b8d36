package category

// Category is the public DTO returned by the category API.
type Category struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image,omitempty"`
}

// Defaults seeds an empty category table.
var Defaults = []string{"Oud", "Rose", "Musk", "Amber", "Sandalwood"}
