package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/everycheese/everycheese/internal/cheese"
	"github.com/everycheese/everycheese/internal/cheese/service"
	"github.com/everycheese/everycheese/pkg/logger"
	"github.com/pkg/errors"
)

type seedResult struct {
	Created int
	Skipped int
	Invalid int
}

// loadCheeses creates one cheese per entry of the JSON array read from r.
// Entries whose derived slug already exists are skipped when skipExisting
// is set, so a catalog file can be loaded repeatedly.
func loadCheeses(ctx context.Context, svc service.Service, r io.Reader, creator string, skipExisting bool) (seedResult, error) {
	var res seedResult
	var forms []cheese.Form
	if err := json.NewDecoder(r).Decode(&forms); err != nil {
		return res, errors.Wrap(err, "could not decode cheese list")
	}
	for i, f := range forms {
		if f.Firmness == "" {
			f.Firmness = cheese.FirmnessUnspecified
		}
		if errs := f.Validate(); errs != nil {
			logger.Warnf("entry %d (%q) is invalid: %v", i, f.Name, errs)
			res.Invalid++
			continue
		}
		if skipExisting {
			_, err := svc.Get(ctx, cheese.Slugify(f.Name))
			if err == nil {
				res.Skipped++
				continue
			}
			if !errors.Is(err, service.ErrNotFound) {
				return res, errors.Wrapf(err, "could not look up entry %d", i)
			}
		}
		c, err := svc.Create(ctx, f, creator)
		if err != nil {
			var verr *service.ValidationError
			if errors.As(err, &verr) {
				logger.Warnf("entry %d (%q) is invalid: %v", i, f.Name, verr.Fields)
				res.Invalid++
				continue
			}
			return res, errors.Wrapf(err, "could not create entry %d", i)
		}
		logger.Infof("created cheese %s", c.Slug)
		res.Created++
	}
	return res, nil
}
