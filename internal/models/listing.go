package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingStatus is the lifecycle state of a lost-phone report.
type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingResolved ListingStatus = "resolved"
	ListingDeleted  ListingStatus = "deleted"
)

func (s ListingStatus) IsValid() bool {
	return s == ListingActive || s == ListingResolved || s == ListingDeleted
}

// ContactInfo is how a finder reaches the owner.
type ContactInfo struct {
	Name  string `bson:"name" json:"name" validate:"required,max=100"`
	Phone string `bson:"phone" json:"phone" validate:"required,max=20"`
	Email string `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
}

// ListingImage references an object held by the image store.
type ListingImage struct {
	URL      string `bson:"url" json:"url"`
	PublicID string `bson:"public_id" json:"publicId"`
}

// Coordinates of where the phone was lost, when known.
type Coordinates struct {
	Latitude  float64 `bson:"latitude" json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `bson:"longitude" json:"longitude" validate:"gte=-180,lte=180"`
}

// Listing is a lost-phone report. Brand, model, color, district and town are
// name snapshots taken at submission; metadata renames never rewrite them.
type Listing struct {
	Base          `bson:",inline"`
	Title         string              `bson:"title" json:"title"`
	Description   string              `bson:"description" json:"description"`
	IMEI          string              `bson:"imei" json:"imei"`
	PhoneModel    string              `bson:"phone_model" json:"phoneModel"`
	Brand         string              `bson:"brand" json:"brand"`
	Color         string              `bson:"color,omitempty" json:"color,omitempty"`
	District      string              `bson:"district" json:"district"`
	Town          string              `bson:"town" json:"town"`
	LostLocation  string              `bson:"lost_location" json:"lostLocation"`
	LostDate      time.Time           `bson:"lost_date" json:"lostDate"`
	ContactInfo   ContactInfo         `bson:"contact_info" json:"contactInfo"`
	Images        []ListingImage      `bson:"images" json:"images"`
	Status        ListingStatus       `bson:"status" json:"status"`
	Author        primitive.ObjectID  `bson:"author" json:"author"`
	CreatedByShop *primitive.ObjectID `bson:"created_by_shop,omitempty" json:"createdByShop,omitempty"`
	IsShopCreated bool                `bson:"is_shop_created" json:"isShopCreated"`
	Views         int64               `bson:"views" json:"views"`
	IsPublic      bool                `bson:"is_public" json:"-"`
	Tags          []string            `bson:"tags,omitempty" json:"tags,omitempty"`
	Coordinates   *Coordinates        `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	ResolvedAt    *time.Time          `bson:"resolved_at,omitempty" json:"resolvedAt,omitempty"`

	// Relevance score when searched by text
	Score float64 `bson:"score,omitempty" json:"-"`

	// Display only, filled on reads
	AuthorName string `bson:"-" json:"authorName,omitempty"`
	ShopName   string `bson:"-" json:"shopName,omitempty"`
}

// OwnedBy reports whether userID is the owning user. For shop listings that is
// the shop's account, so there is a single notion of ownership.
func (l *Listing) OwnedBy(userID primitive.ObjectID) bool {
	return l != nil && !userID.IsZero() && l.Author == userID
}
