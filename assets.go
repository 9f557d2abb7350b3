package folio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/eringen/folio/content"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
)

// ErrAssetExists is returned when an upload name is already taken.
var ErrAssetExists = errors.New("folio: asset name taken")

// Asset is an uploaded image.
type Asset struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
	URL          string `json:"url,omitempty"`
}

// AssetStore holds uploaded files.
type AssetStore interface {
	// Put creates name. It returns ErrAssetExists rather than overwrite.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes name. Removing a missing file is not an error.
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	// URL is the public reference records store for name.
	URL(name string) string
	// Name reverses URL. ok is false for references this store does not own.
	Name(ref string) (name string, ok bool)
}

// DiskAssets stores files in Dir, served under URLPrefix.
type DiskAssets struct {
	Dir       string
	URLPrefix string
}

func (d *DiskAssets) Put(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(d.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return ErrAssetExists
	}
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write asset: %w", err)
	}
	return f.Close()
}

func (d *DiskAssets) Delete(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(d.Dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *DiskAssets) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(d.Dir, name))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	}
	return false, err
}

func (d *DiskAssets) URL(name string) string {
	return d.URLPrefix + name
}

func (d *DiskAssets) Name(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, d.URLPrefix)
	if !ok || !validAssetName(name) {
		return "", false
	}
	return name, true
}

func validAssetName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

// processImage decodes an image from src, resizes it to maxImageWidth if it
// is wider, and encodes it as JPEG.
func processImage(src io.Reader, originalName string) (Asset, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Asset{}, nil, &content.ValidationError{Field: "image", Reason: "decode: " + err.Error()}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxImageWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Asset{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return Asset{
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC().Format(time.RFC3339),
	}, buf.Bytes(), nil
}

// assetNames allocates upload file names with the slug allocator, so
// "My Photo.PNG" becomes my-photo.jpg, then my-photo-1.jpg.
var assetNames = content.Allocator{Seed: func() string { return "image" }}

func (a *App) uniqueAssetName(ctx context.Context, originalName string) (string, error) {
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	slug, err := assetNames.Allocate(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
		name := candidate + ".jpg"
		if ok, err := a.Assets.Exists(ctx, name); err != nil || ok {
			return ok, err
		}
		return a.Store.AssetExists(ctx, name)
	})
	if err != nil {
		return "", err
	}
	return slug + ".jpg", nil
}

// storeAsset names and writes an upload. A concurrent upload can claim the
// allocated name between probe and write; allocation then runs once more.
func (a *App) storeAsset(ctx context.Context, asset *Asset, originalName string, data []byte) error {
	for attempt := 0; ; attempt++ {
		name, err := a.uniqueAssetName(ctx, originalName)
		if err != nil {
			return err
		}
		err = a.Assets.Put(ctx, name, data)
		if err == nil {
			asset.Filename = name
			if err = a.Store.SaveAsset(ctx, *asset); err != nil {
				_ = a.Assets.Delete(ctx, name)
			}
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrAssetExists) || attempt > 0 {
			return err
		}
	}
}

func (a *App) handleAssetUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return &content.ValidationError{Field: "image", Reason: "no image file provided"}
	}
	if file.Size > maxUploadSize {
		return &content.ValidationError{Field: "image", Reason: "file too large (max 10MB)"}
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	asset, data, err := processImage(io.LimitReader(src, maxUploadSize), file.Filename)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := a.storeAsset(ctx, &asset, file.Filename, data); err != nil {
		return err
	}
	asset.URL = a.Assets.URL(asset.Filename)
	a.Log.WithField("filename", asset.Filename).WithField("size", asset.Size).Info("asset uploaded")
	return c.JSON(http.StatusCreated, asset)
}

func (a *App) handleAssetList(c echo.Context) error {
	assets, err := a.Store.ListAssets(c.Request().Context())
	if err != nil {
		return err
	}
	if assets == nil {
		assets = []Asset{}
	}
	for i := range assets {
		assets[i].URL = a.Assets.URL(assets[i].Filename)
	}
	return c.JSON(http.StatusOK, assets)
}

func (a *App) handleAssetDelete(c echo.Context) error {
	filename := c.Param("filename")
	if !validAssetName(filename) {
		return &content.ValidationError{Field: "filename", Reason: "invalid"}
	}
	ctx := c.Request().Context()
	inUse, err := a.Store.AssetInUse(ctx, a.Assets.URL(filename))
	if err != nil {
		return err
	}
	if inUse {
		return echo.NewHTTPError(http.StatusConflict, "asset is referenced by a record")
	}
	if err := a.Assets.Delete(ctx, filename); err != nil {
		return err
	}
	if err := a.Store.DeleteAsset(ctx, filename); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// releaseAssets removes uploaded files a deleted record pointed at, unless
// another record still references them. Failures are logged, not returned;
// the record is already gone.
func (a *App) releaseAssets(ctx context.Context, refs []string) {
	for _, ref := range refs {
		name, ok := a.Assets.Name(ref)
		if !ok {
			continue
		}
		log := a.Log.WithField("filename", name)
		inUse, err := a.Store.AssetInUse(ctx, a.Assets.URL(name))
		if err != nil {
			log.WithError(err).Warn("asset release skipped")
			continue
		}
		if inUse {
			continue
		}
		if err := a.Assets.Delete(ctx, name); err != nil {
			log.WithError(err).Warn("asset file not removed")
			continue
		}
		if err := a.Store.DeleteAsset(ctx, name); err != nil {
			log.WithError(err).Warn("asset metadata not removed")
			continue
		}
		log.Info("asset released")
	}
}
