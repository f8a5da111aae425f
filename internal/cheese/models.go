package cheese

import "time"

// Firmness classifies the texture of a cheese.
type Firmness string

const (
	FirmnessUnspecified Firmness = "unspecified"
	FirmnessSoft        Firmness = "soft"
	FirmnessSemiSoft    Firmness = "semi-soft"
	FirmnessSemiHard    Firmness = "semi-hard"
	FirmnessHard        Firmness = "hard"
)

var firmnessLabels = map[Firmness]string{
	FirmnessUnspecified: "Unspecified",
	FirmnessSoft:        "Soft",
	FirmnessSemiSoft:    "Semi-Soft",
	FirmnessSemiHard:    "Semi-Hard",
	FirmnessHard:        "Hard",
}

// Firmnesses returns every firmness in display order.
func Firmnesses() []Firmness {
	return []Firmness{FirmnessUnspecified, FirmnessSoft, FirmnessSemiSoft, FirmnessSemiHard, FirmnessHard}
}

func (f Firmness) Valid() bool {
	_, ok := firmnessLabels[f]
	return ok
}

// Display returns the human readable label, e.g. "Semi-Soft".
func (f Firmness) Display() string {
	if l, ok := firmnessLabels[f]; ok {
		return l
	}
	return firmnessLabels[FirmnessUnspecified]
}

// Cheese is the persistent catalog entry.
type Cheese struct {
	ID              string    `json:"id" bson:"_id,omitempty"`
	Name            string    `json:"name" bson:"name"`
	Slug            string    `json:"slug" bson:"slug"`
	Description     string    `json:"description" bson:"description"`
	Firmness        Firmness  `json:"firmness" bson:"firmness"`
	CountryOfOrigin string    `json:"countryOfOrigin,omitempty" bson:"countryOfOrigin,omitempty"`
	PhotoKey        string    `json:"-" bson:"photoKey,omitempty"`
	CreatorSub      string    `json:"creator" bson:"creator"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Country resolves CountryOfOrigin. Unknown or empty codes yield a zero Country.
func (c *Cheese) Country() Country {
	country, err := LookupCountry(c.CountryOfOrigin)
	if err != nil {
		return Country{}
	}
	return country
}
