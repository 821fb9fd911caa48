package model

import (
	"encoding/json"

	"github.com/google/jsonapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"workbridge/internal/misc"
)

/*
 * Listing base model - one table for every kind of marketplace posting.
 * Type-specific fields live in the Details object which is marshalled into
 * DetailsJSON on save and back out on load.
 */
type Listing struct {
	ID      string  `jsonapi:"primary,listing" gorm:"primarykey"`
	OwnerID *string `gorm:"not null;index"`
	Owner   *User   `jsonapi:"relation,owner,omitempty"`

	// Type codes: order, service, ad, course, traffic, partnership
	Type        *string `jsonapi:"attr,type" gorm:"not null;index"`
	Title       *string `jsonapi:"attr,title" gorm:"not null"`
	Description *string `jsonapi:"attr,description" gorm:"not null"`
	Category    *string `jsonapi:"attr,category,omitempty"`

	// This is one of the *Details structs below, depending on Type
	DetailsJSON *string     `gorm:"not null"`
	Details     interface{} `jsonapi:"attr,details" gorm:"-"`

	Images []*File `jsonapi:"relation,images,omitempty" gorm:"polymorphic:Link"`

	// Status codes:
	// - active   : visible in the marketplace
	// - closed   : owner stopped taking applications
	// - archived : hidden everywhere except the owner's own list
	Status *string `jsonapi:"attr,status" gorm:"not null;default:'active'"`

	DBTime
}

func (listing *Listing) JSONAPILinks() *jsonapi.Links {
	return &jsonapi.Links{
		"self": misc.APIAbsolutePath("/listing/" + listing.ID),
	}
}

func (listing *Listing) JSONAPIRelationshipLinks(relation string) *jsonapi.Links {
	if relation == "owner" && listing.OwnerID != nil {
		return &jsonapi.Links{
			"related": misc.APIAbsolutePath("/user/" + *listing.OwnerID),
		}
	}
	return nil
}

func (listing *Listing) BeforeCreate(tx *gorm.DB) error {
	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	return nil
}

func (listing *Listing) BeforeSave(tx *gorm.DB) error {
	// Marshal Details object into DetailsJSON
	jsonByteSlice, err := json.Marshal(listing.Details)
	jsonString := string(jsonByteSlice)
	listing.DetailsJSON = &jsonString
	return errors.WithStack(err)
}

func (listing *Listing) AfterSave(tx *gorm.DB) error {
	return listing.AfterFind(tx)
}

func (listing *Listing) AfterFind(tx *gorm.DB) error {
	// Unmarshal DetailsJSON into Details object
	err := json.Unmarshal([]byte(*listing.DetailsJSON), &listing.Details)
	return errors.WithStack(err)
}

type OrderDetails struct {
	Budget   float64 `json:"budget"`
	Deadline string  `json:"deadline,omitempty"`
}

type ServiceDetails struct {
	Price        float64 `json:"price"`
	DeliveryDays uint    `json:"delivery_days,omitempty" mapstructure:"delivery_days"`
}

type AdDetails struct {
	Link string `json:"link"`
}

type CourseDetails struct {
	Price   float64 `json:"price"`
	Lessons uint    `json:"lessons,omitempty"`
}

type TrafficDetails struct {
	Audience string `json:"audience"`
	Volume   uint   `json:"volume,omitempty"`
}

type PartnershipDetails struct {
	Terms string `json:"terms"`
}
