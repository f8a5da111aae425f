package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/everycheese/everycheese/internal/cheese"
	"github.com/everycheese/everycheese/internal/cheese/service"
	"github.com/everycheese/everycheese/internal/models"
	"github.com/everycheese/everycheese/internal/web"
	"github.com/everycheese/everycheese/pkg/logger"
	"github.com/everycheese/everycheese/pkg/middleware"
	"github.com/gin-gonic/gin"
)

const (
	maxPhotoBytes   = 5 << 20
	defaultPhotoTTL = 15 * time.Minute
)

// UserLookup resolves a cheese creator for display.
type UserLookup interface {
	GetBySub(ctx context.Context, sub string) (*models.User, error)
}

// PhotoStore keeps uploaded cheese photos.
type PhotoStore interface {
	PutPhoto(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PhotoURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type Option func(*Handler)

func WithUsers(u UserLookup) Option {
	return func(h *Handler) { h.users = u }
}

// WithPhotos enables the photo field on the forms and photo display on the
// detail page.
func WithPhotos(p PhotoStore) Option {
	return func(h *Handler) { h.photos = p }
}

type Handler struct {
	svc      service.Service
	users    UserLookup
	photos   PhotoStore
	photoTTL time.Duration
}

type listPage struct {
	web.Page
	Cheeses []*cheese.Cheese
}

type detailPage struct {
	web.Page
	Cheese   *cheese.Cheese
	Country  cheese.Country
	Creator  *models.User
	PhotoURL string
}

type formPage struct {
	web.Page
	Action        string
	Form          cheese.Form
	Errors        cheese.FieldErrors
	Firmnesses    []cheese.Firmness
	PhotosEnabled bool
}

// RegisterCheeseRoutes mounts the HTML catalog views. loginRequired guards
// the create and update views.
func RegisterCheeseRoutes(r *gin.Engine, svc service.Service, loginRequired gin.HandlerFunc, opts ...Option) *Handler {
	h := &Handler{svc: svc, photoTTL: defaultPhotoTTL}
	for _, o := range opts {
		o(h)
	}

	r.GET("/cheeses/", h.list)
	r.GET("/cheeses/add/", loginRequired, h.createForm)
	r.POST("/cheeses/add/", loginRequired, h.create)
	r.GET("/cheeses/:slug/", h.detail)
	r.GET("/cheeses/:slug/update/", loginRequired, h.updateForm)
	r.POST("/cheeses/:slug/update/", loginRequired, h.update)
	return h
}

func page(c *gin.Context, title string) web.Page {
	return web.Page{Title: title, User: middleware.CurrentUser(c)}
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.serverError(c, "list cheeses", err)
		return
	}
	c.HTML(http.StatusOK, "cheese_list.html", listPage{Page: page(c, "Cheese List"), Cheeses: list})
}

func (h *Handler) detail(c *gin.Context) {
	ctx := c.Request.Context()
	ch, ok := h.load(c)
	if !ok {
		return
	}
	p := detailPage{Page: page(c, ch.Name), Cheese: ch, Country: ch.Country()}
	if h.users != nil && ch.CreatorSub != "" {
		u, err := h.users.GetBySub(ctx, ch.CreatorSub)
		if err != nil {
			logger.Warnf("cheese %s: creator lookup failed: %v", ch.Slug, err)
		}
		p.Creator = u
	}
	if h.photos != nil && ch.PhotoKey != "" {
		u, err := h.photos.PhotoURL(ctx, ch.PhotoKey, h.photoTTL)
		if err != nil {
			logger.Warnf("cheese %s: presign photo: %v", ch.Slug, err)
		}
		p.PhotoURL = u
	}
	c.HTML(http.StatusOK, "cheese_detail.html", p)
}

func (h *Handler) createForm(c *gin.Context) {
	h.renderForm(c, "Add Cheese", "/cheeses/add/", cheese.NewForm(), nil)
}

func (h *Handler) create(c *gin.Context) {
	var f cheese.Form
	if err := c.ShouldBind(&f); err != nil {
		h.renderForm(c, "Add Cheese", "/cheeses/add/", f, cheese.BindErrors(err))
		return
	}
	photo, perr := h.photoUpload(c)
	if perr != "" {
		h.renderForm(c, "Add Cheese", "/cheeses/add/", f, cheese.FieldErrors{"photo": perr})
		return
	}
	ctx := c.Request.Context()
	u := middleware.CurrentUser(c)
	ch, err := h.svc.Create(ctx, f, u.Sub)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.renderForm(c, "Add Cheese", "/cheeses/add/", f, verr.Fields)
			return
		}
		h.serverError(c, "create cheese", err)
		return
	}
	logger.Infof("cheese created: slug=%s creator=%s", ch.Slug, u.Sub)
	h.storePhoto(ctx, ch.Slug, photo)
	c.Redirect(http.StatusFound, detailURL(ch.Slug))
}

func (h *Handler) updateForm(c *gin.Context) {
	ch, ok := h.load(c)
	if !ok {
		return
	}
	h.renderForm(c, "Update Cheese", updateURL(ch.Slug), cheese.FormFromCheese(ch), nil)
}

func (h *Handler) update(c *gin.Context) {
	slug := c.Param("slug")
	action := updateURL(slug)
	if _, ok := h.load(c); !ok {
		return
	}
	var f cheese.Form
	if err := c.ShouldBind(&f); err != nil {
		h.renderForm(c, "Update Cheese", action, f, cheese.BindErrors(err))
		return
	}
	photo, perr := h.photoUpload(c)
	if perr != "" {
		h.renderForm(c, "Update Cheese", action, f, cheese.FieldErrors{"photo": perr})
		return
	}
	ctx := c.Request.Context()
	ch, err := h.svc.Update(ctx, slug, f)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			h.renderForm(c, "Update Cheese", action, f, verr.Fields)
		case errors.Is(err, service.ErrNotFound):
			h.notFound(c)
		default:
			h.serverError(c, "update cheese", err)
		}
		return
	}
	logger.Infof("cheese updated: slug=%s", ch.Slug)
	h.storePhoto(ctx, ch.Slug, photo)
	c.Redirect(http.StatusFound, detailURL(ch.Slug))
}

// load fetches the cheese named by the slug parameter, rendering the
// not-found or error page itself when it cannot.
func (h *Handler) load(c *gin.Context) (*cheese.Cheese, bool) {
	ch, err := h.svc.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.notFound(c)
		} else {
			h.serverError(c, "get cheese", err)
		}
		return nil, false
	}
	return ch, true
}

func (h *Handler) renderForm(c *gin.Context, title, action string, f cheese.Form, errs cheese.FieldErrors) {
	c.HTML(http.StatusOK, "cheese_form.html", formPage{
		Page:          page(c, title),
		Action:        action,
		Form:          f,
		Errors:        errs,
		Firmnesses:    cheese.Firmnesses(),
		PhotosEnabled: h.photos != nil,
	})
}

func (h *Handler) notFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found.html", web.NotFound(middleware.CurrentUser(c), "No cheese found matching the query."))
}

func (h *Handler) serverError(c *gin.Context, op string, err error) {
	logger.Errorf("%s: %v", op, err)
	c.HTML(http.StatusInternalServerError, "error.html", page(c, "Server Error"))
}

// photoUpload returns the optional photo part. The string result is a
// field error message.
func (h *Handler) photoUpload(c *gin.Context) (*multipart.FileHeader, string) {
	if h.photos == nil {
		return nil, ""
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		return nil, ""
	}
	if fh.Size > maxPhotoBytes {
		return nil, "The photo must be at most 5 MB."
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return nil, "Upload a valid image."
	}
	return fh, ""
}

// storePhoto uploads fh and links it to the cheese. Failures are logged; the
// cheese itself is already saved.
func (h *Handler) storePhoto(ctx context.Context, slug string, fh *multipart.FileHeader) {
	if fh == nil {
		return
	}
	f, err := fh.Open()
	if err != nil {
		logger.Errorf("cheese %s: open photo: %v", slug, err)
		return
	}
	defer f.Close()
	key := photoKey(slug, fh.Filename, time.Now())
	if err := h.photos.PutPhoto(ctx, key, f, fh.Size, fh.Header.Get("Content-Type")); err != nil {
		logger.Errorf("cheese %s: upload photo: %v", slug, err)
		return
	}
	if err := h.svc.AttachPhoto(ctx, slug, key); err != nil {
		logger.Errorf("cheese %s: attach photo: %v", slug, err)
	}
}

func photoKey(slug, filename string, now time.Time) string {
	return fmt.Sprintf("cheeses/%s/%d%s", slug, now.UnixNano(), strings.ToLower(path.Ext(filename)))
}

func detailURL(slug string) string { return "/cheeses/" + slug + "/" }

func updateURL(slug string) string { return "/cheeses/" + slug + "/update/" }
