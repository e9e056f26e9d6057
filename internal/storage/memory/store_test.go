package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webcapture/internal/capture"
)

func TestGetOrCreateWebsiteIsIdempotentPerDomain(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	first, err := store.GetOrCreateWebsite(ctx, capture.Website{ID: "1", Domain: "example.com"})
	require.NoError(t, err)
	second, err := store.GetOrCreateWebsite(ctx, capture.Website{ID: "2", Domain: "example.com"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	_, err = store.GetWebsite(ctx, "2")
	require.ErrorIs(t, err, capture.ErrNotFound)

	store.DeleteWebsite("1")
	_, err = store.GetWebsite(ctx, "1")
	require.ErrorIs(t, err, capture.ErrNotFound)
}

func TestPageTitleIsSetOnce(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.CreatePage(ctx, capture.Page{ID: "p", JobID: "j"}))
	require.NoError(t, store.SetPageTitle(ctx, "p", "First"))
	require.NoError(t, store.SetPageTitle(ctx, "p", "Second"))
	page, err := store.GetPage(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, "First", *page.Title)

	pages, err := store.ListPagesByJob(ctx, "j")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.ErrorIs(t, store.SetPageTitle(ctx, "missing", "x"), capture.ErrNotFound)
}

func TestScreenshotsRequirePage(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	require.ErrorIs(t, store.CreateScreenshot(ctx, capture.Screenshot{ID: "s", PageID: "nope"}), capture.ErrNotFound)

	require.NoError(t, store.CreatePage(ctx, capture.Page{ID: "p", JobID: "j"}))
	require.ErrorIs(t, store.CreateScreenshot(ctx, capture.Screenshot{ID: "s", JobID: "j", PageID: "p"}), capture.ErrNotFound)
	claimJob(t, store, "j")
	require.NoError(t, store.CreateScreenshot(ctx, capture.Screenshot{ID: "s1", JobID: "j", PageID: "p", DeviceType: "desktop"}))
	require.NoError(t, store.CreateScreenshot(ctx, capture.Screenshot{ID: "s2", JobID: "j", PageID: "p", DeviceType: "mobile"}))

	byJob, err := store.ListScreenshotsByJob(ctx, "j")
	require.NoError(t, err)
	require.Len(t, byJob, 2)
	require.Equal(t, "desktop", byJob[0].DeviceType)

	byPage, err := store.ListScreenshotsByPage(ctx, "p")
	require.NoError(t, err)
	require.Len(t, byPage, 2)
	_, err = store.GetScreenshot(ctx, "s3")
	require.ErrorIs(t, err, capture.ErrNotFound)
}

func TestScreenshotsRequireProcessingJob(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	claimJob(t, store, "j")
	require.NoError(t, store.CreatePage(ctx, capture.Page{ID: "p", JobID: "j"}))
	require.NoError(t, store.CreateScreenshot(ctx, capture.Screenshot{ID: "s1", JobID: "j", PageID: "p"}))

	require.NoError(t, store.FailJob(ctx, "j", "capture abandoned: worker lease expired"))
	err := store.CreateScreenshot(ctx, capture.Screenshot{ID: "s2", JobID: "j", PageID: "p"})
	require.ErrorIs(t, err, capture.ErrJobNotActive)

	shots, err := store.ListScreenshotsByJob(ctx, "j")
	require.NoError(t, err)
	require.Len(t, shots, 1)
}

func TestDeviceProfiles(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.CreateDeviceProfile(ctx, capture.DeviceProfile{ID: "1", Name: "wide", Width: 2560, Height: 1440, IsDefault: true}))
	require.NoError(t, store.CreateDeviceProfile(ctx, capture.DeviceProfile{ID: "2", Name: "kiosk", Width: 1080, Height: 1920}))
	require.ErrorIs(t, store.CreateDeviceProfile(ctx, capture.DeviceProfile{ID: "3", Name: "wide"}), capture.ErrConflict)

	all, err := store.ListDeviceProfiles(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "kiosk", all[0].Name)

	defaults, err := store.ListDeviceProfiles(ctx, true)
	require.NoError(t, err)
	require.Len(t, defaults, 1)

	profile, err := store.GetDeviceProfileByName(ctx, "wide")
	require.NoError(t, err)
	require.Equal(t, 2560, profile.Width)
	_, err = store.GetDeviceProfileByName(ctx, "Wide")
	require.ErrorIs(t, err, capture.ErrNotFound)
}
