package cheese

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirmnessDisplay(t *testing.T) {
	assert.Equal(t, "Semi-Soft", FirmnessSemiSoft.Display())
	assert.Equal(t, "Hard", FirmnessHard.Display())
	assert.Equal(t, "Unspecified", Firmness("runny").Display())
	assert.False(t, Firmness("runny").Valid())
	assert.Len(t, Firmnesses(), 5)
	for _, f := range Firmnesses() {
		assert.True(t, f.Valid(), f)
	}
}

func TestLookupCountry(t *testing.T) {
	c, err := LookupCountry("fr")
	require.NoError(t, err)
	assert.Equal(t, Country{Code: "FR", Name: "France"}, c)

	c, err = LookupCountry("")
	require.NoError(t, err)
	assert.Equal(t, Country{}, c)

	_, err = LookupCountry("XX1")
	assert.ErrorIs(t, err, ErrUnknownCountry)
	_, err = LookupCountry("419")
	assert.ErrorIs(t, err, ErrUnknownCountry)

	ch := &Cheese{CountryOfOrigin: "CH"}
	assert.Equal(t, "Switzerland", ch.Country().Name)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "camembert-de-normandie", Slugify("Camembert de Normandie"))
	assert.Equal(t, "paski-sir", Slugify("Paški Sir"))
	assert.Equal(t, "cheese", Slugify("!!!"))
	assert.Equal(t, []string{"brie", "brie-2", "brie-3"}, SlugCandidates("brie", 3))
	assert.Empty(t, SlugCandidates("brie", 0))
	assert.Equal(t, []string{"add-2", "add-3"}, SlugCandidates("add", 3))
	assert.True(t, Reserved("add"))
	assert.False(t, Reserved("add-2"))
}

func TestFormValidate(t *testing.T) {
	f := Form{Name: "  Comté ", Firmness: FirmnessHard, CountryOfOrigin: "fr"}
	require.Nil(t, f.Validate())
	assert.Equal(t, "Comté", f.Name)
	assert.Equal(t, "FR", f.CountryOfOrigin)

	bad := Form{Name: " ", Firmness: "gooey", CountryOfOrigin: "Atlantis"}
	errs := bad.Validate()
	require.NotNil(t, errs)
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "firmness")
	assert.Contains(t, errs, "country_of_origin")
}

func TestFormApplyKeepsSlug(t *testing.T) {
	c := &Cheese{Name: "Old", Slug: "old", Firmness: FirmnessSoft}
	f := FormFromCheese(c)
	f.Name = "New"
	f.Description = "Something new"
	f.Apply(c)
	assert.Equal(t, "New", c.Name)
	assert.Equal(t, "Something new", c.Description)
	assert.Equal(t, "old", c.Slug)
}

func TestBindErrors(t *testing.T) {
	err := binding.Validator.ValidateStruct(&Form{Firmness: "gooey"})
	require.Error(t, err)
	errs := BindErrors(err)
	assert.Equal(t, msgRequired, errs["name"])
	assert.Equal(t, msgChoice, errs["firmness"])

	errs = BindErrors(assert.AnError)
	assert.Contains(t, errs, NonFieldKey)
}
