// Package entity defines the PII category enumeration and the candidate span
// types shared by the scanner, resolver, redactor, and ledger.
package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Category is a PII category from the fixed resume enumeration.
type Category string

const (
	PersonName      Category = "PERSON_NAME"
	EmailAddress    Category = "EMAIL_ADDRESS"
	PhoneNumber     Category = "PHONE_NUMBER"
	SocialMedia     Category = "SOCIAL_MEDIA"
	DateOfBirth     Category = "DATE_OF_BIRTH"
	Gender          Category = "GENDER"
	MaritalStatus   Category = "MARITAL_STATUS"
	FamilyInfo      Category = "FAMILY_INFO"
	Address         Category = "ADDRESS"
	EducationDates  Category = "EDUCATION_DATES"
	WorkDates       Category = "WORK_DATES"
	PhotoReferences Category = "PHOTO_REFERENCES"
	Age             Category = "AGE"
	Nationality     Category = "NATIONALITY"
	Religion        Category = "RELIGION"
	Location        Category = "LOCATION"
	CompanyName     Category = "COMPANY_NAME"
	SchoolName      Category = "SCHOOL_NAME"
)

// placeholders maps each category to its redaction token.
var placeholders = map[Category]string{
	PersonName:      "<NAME>",
	EmailAddress:    "<EMAIL>",
	PhoneNumber:     "<PHONE>",
	SocialMedia:     "<SOCIAL_MEDIA>",
	DateOfBirth:     "<DOB>",
	Gender:          "<GENDER>",
	MaritalStatus:   "<MARITAL_STATUS>",
	FamilyInfo:      "<FAMILY_INFO>",
	Address:         "<ADDRESS>",
	EducationDates:  "<EDUCATION_DATES>",
	WorkDates:       "<WORK_DATES>",
	PhotoReferences: "<PHOTO>",
	Age:             "<AGE>",
	Nationality:     "<NATIONALITY>",
	Religion:        "<RELIGION>",
	Location:        "<LOCATION>",
	CompanyName:     "<COMPANY>",
	SchoolName:      "<SCHOOL>",
}

// All returns every known category in a stable (sorted) order.
func All() []Category {
	cats := make([]Category, 0, len(placeholders))
	for c := range placeholders {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Parse validates a category name (SCREAMING_SNAKE, case-insensitive).
func Parse(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := placeholders[c]; !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := placeholders[c]
	return ok
}

// Placeholder returns the redaction token for c.
func (c Category) Placeholder() string {
	if p, ok := placeholders[c]; ok {
		return p
	}
	return "<REDACTED>"
}

// Key returns the lower_snake_case form used as the ledger map key.
func (c Category) Key() string { return strings.ToLower(string(c)) }

// Candidate is a detected span before conflict resolution. Offsets are byte
// positions into the original document text, half-open [Start, End), with
// text[Start:End] == Text.
type Candidate struct {
	Category Category `json:"category"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Score    float64  `json:"score"`
	Text     string   `json:"text"`
}

// Overlaps reports whether the two half-open ranges intersect.
func (c Candidate) Overlaps(o Candidate) bool {
	return c.Start < o.End && o.Start < c.End
}
