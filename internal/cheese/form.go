package cheese

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Form carries the editable fields of the create and update views.
type Form struct {
	Name            string   `form:"name" json:"name" binding:"required,max=255"`
	Description     string   `form:"description" json:"description"`
	Firmness        Firmness `form:"firmness" json:"firmness" binding:"required,oneof=unspecified soft semi-soft semi-hard hard"`
	CountryOfOrigin string   `form:"country_of_origin" json:"country_of_origin"`
}

// FieldErrors maps a form field name to a message.
type FieldErrors map[string]string

// NonFieldKey holds errors that do not belong to a single field.
const NonFieldKey = "__all__"

func (e FieldErrors) Empty() bool { return len(e) == 0 }

// NewForm returns the blank form shown by the create view.
func NewForm() Form {
	return Form{Firmness: FirmnessUnspecified}
}

func FormFromCheese(c *Cheese) Form {
	return Form{
		Name:            c.Name,
		Description:     c.Description,
		Firmness:        c.Firmness,
		CountryOfOrigin: c.CountryOfOrigin,
	}
}

// Validate normalizes the form and checks what binding tags cannot.
func (f *Form) Validate() FieldErrors {
	errs := FieldErrors{}
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		errs["name"] = msgRequired
	}
	if !f.Firmness.Valid() {
		errs["firmness"] = msgChoice
	}
	country, err := LookupCountry(f.CountryOfOrigin)
	if err != nil {
		errs["country_of_origin"] = "Select a valid country."
	} else {
		f.CountryOfOrigin = country.Code
	}
	if errs.Empty() {
		return nil
	}
	return errs
}

// Apply copies the mutable fields onto c. The slug is left untouched.
func (f Form) Apply(c *Cheese) {
	c.Name = f.Name
	c.Description = f.Description
	c.Firmness = f.Firmness
	c.CountryOfOrigin = f.CountryOfOrigin
}

const (
	msgRequired = "This field is required."
	msgChoice   = "Select a valid choice."
)

// BindErrors translates a gin binding error into field errors.
func BindErrors(err error) FieldErrors {
	errs := FieldErrors{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs[NonFieldKey] = err.Error()
		return errs
	}
	formType := reflect.TypeOf(Form{})
	for _, fe := range verrs {
		key := strings.ToLower(fe.Field())
		if sf, ok := formType.FieldByName(fe.StructField()); ok {
			if tag := sf.Tag.Get("form"); tag != "" {
				key = tag
			}
		}
		switch fe.Tag() {
		case "required":
			errs[key] = msgRequired
		case "oneof":
			errs[key] = msgChoice
		case "max":
			errs[key] = "Ensure this value has at most " + fe.Param() + " characters."
		default:
			errs[key] = "Enter a valid value."
		}
	}
	return errs
}
