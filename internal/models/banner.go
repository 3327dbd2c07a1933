package models

// Banner is a promotional slide on the home page.
type Banner struct {
	Base       `bson:",inline"`
	Title      string `bson:"title" json:"title"`
	Subtitle   string `bson:"subtitle,omitempty" json:"subtitle,omitempty"`
	ImageURL   string `bson:"image_url" json:"imageUrl"`
	ButtonText string `bson:"button_text,omitempty" json:"buttonText,omitempty"`
	ButtonLink string `bson:"button_link,omitempty" json:"buttonLink,omitempty"`
	IsActive   bool   `bson:"is_active" json:"isActive"`
	Order      int    `bson:"order" json:"order"`
}
