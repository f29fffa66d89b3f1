package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Field length limits mirror the column sizes in migrations/001_initial.sql.
const (
	MaxNameLen     = 255
	MaxCategoryLen = 100
	MaxISBNLen     = 20
	MaxLanguageLen = 50
)

// ErrValidation marks errors caused by caller input rather than the server.
var ErrValidation = errors.New("validation failed")

// Product is a catalog item.
type Product struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Price           float64   `json:"price"`
	Stock           int       `json:"stock"`
	Image           *string   `json:"image,omitempty"`
	Category        string    `json:"category"`
	Author          *string   `json:"author,omitempty"`
	ISBN            *string   `json:"isbn,omitempty"`
	Pages           *int      `json:"pages,omitempty"`
	Language        *string   `json:"language,omitempty"`
	Publisher       *string   `json:"publisher,omitempty"`
	PublicationYear *int      `json:"publicationYear,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ProductInput is the writable subset of Product. Nil fields are left
// unchanged on update.
type ProductInput struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Price           *float64 `json:"price"`
	Stock           *int     `json:"stock"`
	Image           *string  `json:"image"`
	Category        *string  `json:"category"`
	Author          *string  `json:"author"`
	ISBN            *string  `json:"isbn"`
	Pages           *int     `json:"pages"`
	Language        *string  `json:"language"`
	Publisher       *string  `json:"publisher"`
	PublicationYear *int     `json:"publicationYear"`
}

// ValidateForCreate checks that required fields are present and sane.
func (in ProductInput) ValidateForCreate() error {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Price == nil {
		return fmt.Errorf("%w: price is required", ErrValidation)
	}
	if in.Category == nil || strings.TrimSpace(*in.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	return in.Validate()
}

// Validate checks the fields that are set.
func (in ProductInput) Validate() error {
	if in.Name != nil && len(*in.Name) > MaxNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, MaxNameLen)
	}
	if in.Category != nil && len(*in.Category) > MaxCategoryLen {
		return fmt.Errorf("%w: category exceeds %d characters", ErrValidation, MaxCategoryLen)
	}
	if in.ISBN != nil && len(*in.ISBN) > MaxISBNLen {
		return fmt.Errorf("%w: isbn exceeds %d characters", ErrValidation, MaxISBNLen)
	}
	if in.Language != nil && len(*in.Language) > MaxLanguageLen {
		return fmt.Errorf("%w: language exceeds %d characters", ErrValidation, MaxLanguageLen)
	}
	if in.Price != nil && *in.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if in.Stock != nil && *in.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrValidation)
	}
	if in.Pages != nil && *in.Pages < 0 {
		return fmt.Errorf("%w: pages must not be negative", ErrValidation)
	}
	return nil
}
