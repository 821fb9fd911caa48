package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
 * Application model - an executor applying to an order listing.
 */
type Application struct {
	ID          string   `jsonapi:"primary,application" gorm:"primarykey"`
	ListingID   *string  `gorm:"not null;index"`
	Listing     *Listing `jsonapi:"relation,listing,omitempty" gorm:"PRELOAD:false"`
	ApplicantID *string  `gorm:"not null;index"`
	Applicant   *User    `jsonapi:"relation,applicant,omitempty" gorm:"PRELOAD:false"`

	CoverLetter *string `jsonapi:"attr,cover_letter,omitempty"`

	// Status codes:
	// - created  : applicant submitted, owner has not decided
	// - accepted : owner picked this applicant, an order chat is opened
	// - declined : owner turned this applicant down
	Status *string `jsonapi:"attr,status" gorm:"not null;default:'created'"`

	DBTime
}

func (application *Application) BeforeCreate(tx *gorm.DB) error {
	if application.ID == "" {
		application.ID = uuid.New().String()
	}
	return nil
}

/*
 * Review model - left by one party of a completed order about the other.
 */
type Review struct {
	ID         string   `jsonapi:"primary,review" gorm:"primarykey"`
	ListingID  *string  `gorm:"not null;index"`
	Listing    *Listing `jsonapi:"relation,listing,omitempty" gorm:"PRELOAD:false"`
	ReviewerID *string  `gorm:"not null"`
	Reviewer   *User    `jsonapi:"relation,reviewer,omitempty" gorm:"PRELOAD:false"`
	ReviewedID *string  `gorm:"not null;index"`
	Reviewed   *User    `jsonapi:"relation,reviewed,omitempty" gorm:"PRELOAD:false"`

	Rating  *uint   `jsonapi:"attr,rating" gorm:"not null"`
	Comment *string `jsonapi:"attr,comment,omitempty"`

	DBTime
}

func (review *Review) BeforeCreate(tx *gorm.DB) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	return nil
}
