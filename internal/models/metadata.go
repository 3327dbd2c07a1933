package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// PhoneBrand is the root of the brand -> model -> color vocabulary.
type PhoneBrand struct {
	Base `bson:",inline"`
	Name string `bson:"name" json:"name"`
}

type PhoneModel struct {
	Base    `bson:",inline"`
	Name    string             `bson:"name" json:"name"`
	BrandID primitive.ObjectID `bson:"brand_id" json:"brandId"`
}

type PhoneColor struct {
	Base    `bson:",inline"`
	Name    string             `bson:"name" json:"name"`
	HexCode string             `bson:"hex_code,omitempty" json:"hexCode,omitempty"`
	ModelID primitive.ObjectID `bson:"model_id" json:"modelId"`
}

// District is the root of the district -> town vocabulary.
type District struct {
	Base     `bson:",inline"`
	Name     string `bson:"name" json:"name"`
	IsActive bool   `bson:"is_active" json:"isActive"`
}

type Town struct {
	Base       `bson:",inline"`
	Name       string             `bson:"name" json:"name"`
	DistrictID primitive.ObjectID `bson:"district_id" json:"districtId"`
	IsActive   bool               `bson:"is_active" json:"isActive"`
}
