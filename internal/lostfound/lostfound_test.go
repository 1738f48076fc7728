package lostfound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/blob"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/notify"
	"github.com/erazemk/najdeno/internal/store"
)

// fakeImages records stored and deleted references.
type fakeImages struct {
	mu        sync.Mutex
	next      int
	stored    []string
	deleted   []string
	putErr    error
	deleteErr error
}

func (f *fakeImages) Put(_ context.Context, r io.Reader) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	io.Copy(io.Discard, r)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ref := "/uploads/" + string(rune('a'+f.next-1)) + ".jpg"
	f.stored = append(f.stored, ref)
	return ref, nil
}

func (f *fakeImages) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return f.deleteErr
}

func newRegistry(t *testing.T) (*Registry, *fakeImages) {
	t.Helper()
	database := db.NewTestDB(t)
	images := &fakeImages{}
	return New(database, images, notify.New(database, 0)), images
}

func notificationsOf(t *testing.T, r *Registry, username, typ string) []model.Notification {
	t.Helper()
	list, err := r.ListNotifications(context.Background(), username)
	require.NoError(t, err)
	var out []model.Notification
	for _, n := range list {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func registerPhone(t *testing.T, r *Registry) *model.Item {
	t.Helper()
	item, err := r.RegisterFoundItem(context.Background(), model.ItemAttrs{
		Name:     "Smartphone",
		Category: "phone",
		Colour:   "blue",
		Location: "Library",
	}, nil)
	require.NoError(t, err)
	return item
}

func TestRegisterFoundItem(t *testing.T) {
	r, _ := newRegistry(t)

	item := registerPhone(t, r)
	assert.Equal(t, model.ItemStatusAvailable, item.Status)
	assert.Equal(t, model.StateAvailable, item.State())
	assert.Equal(t, model.KindFound, item.Kind())
	assert.True(t, item.IsAdminItem)
	assert.Empty(t, item.ReportedBy)
	assert.Nil(t, item.ResalePrice)
	assert.Nil(t, item.ClaimedAt)

	_, err := r.RegisterFoundItem(context.Background(), model.ItemAttrs{Name: "  "}, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

// Scenario A: a lost report matches a registered found item.
func TestReportLostMatches(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	found := registerPhone(t, r)
	_, err := r.RegisterFoundItem(ctx, model.ItemAttrs{Name: "Umbrella", Colour: "red", Location: "Gym"}, nil)
	require.NoError(t, err)

	report, err := r.ReportLost(ctx, model.ItemAttrs{
		Name:     "phone",
		Category: "phone",
		Colour:   "blue",
		Location: "Library",
	}, "carol", nil)
	require.NoError(t, err)

	assert.Equal(t, "carol", report.Item.ReportedBy)
	assert.Equal(t, model.KindReport, report.Item.Kind())
	assert.False(t, report.Item.IsAdminItem)
	assert.GreaterOrEqual(t, report.MatchCount, 1)
	assert.Contains(t, report.MatchedIDs, found.ID)
	assert.Len(t, report.MatchedIDs, report.MatchCount)

	matches := notificationsOf(t, r, "carol", model.NotificationMatch)
	require.Len(t, matches, 1)

	var payload struct {
		ItemID   int64 `json:"item_id"`
		ReportID int64 `json:"report_id"`
	}
	require.NoError(t, json.Unmarshal(matches[0].Payload, &payload))
	assert.Equal(t, found.ID, payload.ItemID)
	assert.Equal(t, report.Item.ID, payload.ReportID)
}

func TestReportLostWithoutMatches(t *testing.T) {
	r, _ := newRegistry(t)

	report, err := r.ReportLost(context.Background(), model.ItemAttrs{Name: "Violin"}, "dave", nil)
	require.NoError(t, err)
	assert.Zero(t, report.MatchCount)
	assert.Empty(t, report.MatchedIDs)
	assert.NotNil(t, report.MatchedIDs)
	assert.Empty(t, notificationsOf(t, r, "dave", model.NotificationMatch))
}

// Scenario E: an empty name is rejected and nothing is stored.
func TestReportLostValidation(t *testing.T) {
	r, images := newRegistry(t)
	ctx := context.Background()

	_, err := r.ReportLost(ctx, model.ItemAttrs{Name: ""}, "carol", strings.NewReader("photo"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = r.ReportLost(ctx, model.ItemAttrs{Name: "Wallet"}, "", nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	items, err := r.ListItems(ctx, model.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, images.stored)
}

func TestReportLostNotificationFailureDoesNotFailReport(t *testing.T) {
	database := db.NewTestDB(t)
	r := New(database, nil, failingNotifier{})
	ctx := context.Background()

	_, err := r.RegisterFoundItem(ctx, model.ItemAttrs{Name: "Blue bottle"}, nil)
	require.NoError(t, err)

	report, err := r.ReportLost(ctx, model.ItemAttrs{Name: "bottle"}, "erin", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MatchCount)
}

func TestReportLostMatchFailureRollsBack(t *testing.T) {
	r, images := newRegistry(t)
	ctx := context.Background()

	findCandidates = func(context.Context, store.DBTX, model.MatchQuery, int) ([]model.Item, error) {
		return nil, errors.New("disk I/O error")
	}
	t.Cleanup(func() { findCandidates = store.FindCandidates })

	_, err := r.ReportLost(ctx, model.ItemAttrs{Name: "Scarf"}, "erin", strings.NewReader("photo"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))

	items, err := r.ListItems(ctx, model.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, images.stored, images.deleted)
}

// failingNotifier drops every notification, as a dispatcher does when the
// outbox cannot be written.
type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, model.Notification) {}
func (failingNotifier) Drain(context.Context) int                  { return 0 }

func TestImagesOnCreate(t *testing.T) {
	r, images := newRegistry(t)

	item, err := r.RegisterFoundItem(context.Background(), model.ItemAttrs{Name: "Scarf"}, strings.NewReader("photo"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/a.jpg", item.ImagePath)

	images.putErr = apperr.Validation("unsupported image format")
	_, err = r.RegisterFoundItem(context.Background(), model.ItemAttrs{Name: "Hat"}, strings.NewReader("photo"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	items, _ := r.ListItems(context.Background(), model.ItemFilter{})
	assert.Len(t, items, 1)
}

func TestUpdateItemSwapsImage(t *testing.T) {
	r, images := newRegistry(t)
	ctx := context.Background()

	item, err := r.RegisterFoundItem(ctx, model.ItemAttrs{Name: "Scarf", Colour: "green"}, strings.NewReader("old"))
	require.NoError(t, err)

	name := "Wool scarf"
	updated, err := r.UpdateItem(ctx, item.ID, model.ItemPatch{Name: &name}, strings.NewReader("new"))
	require.NoError(t, err)
	assert.Equal(t, "Wool scarf", updated.Name)
	assert.Equal(t, "green", updated.Colour)
	assert.Equal(t, "/uploads/b.jpg", updated.ImagePath)
	assert.Equal(t, []string{"/uploads/a.jpg"}, images.deleted)

	// Without a new image the old one stays.
	colour := "dark green"
	updated, err = r.UpdateItem(ctx, item.ID, model.ItemPatch{Colour: &colour}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/b.jpg", updated.ImagePath)
	assert.Len(t, images.deleted, 1)
}

func TestUpdateItemFailureRemovesNewImage(t *testing.T) {
	r, images := newRegistry(t)

	_, err := r.UpdateItem(context.Background(), 999, model.ItemPatch{}, strings.NewReader("new"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, images.stored, images.deleted)
}

func TestDeleteItem(t *testing.T) {
	r, images := newRegistry(t)
	ctx := context.Background()

	item, err := r.RegisterFoundItem(ctx, model.ItemAttrs{Name: "Scarf"}, strings.NewReader("photo"))
	require.NoError(t, err)

	// Image deletion failures are logged, not returned.
	images.deleteErr = errors.New("disk unplugged")
	require.NoError(t, r.DeleteItem(ctx, item.ID))
	assert.Equal(t, []string{item.ImagePath}, images.deleted)

	_, err = r.GetItem(ctx, item.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = r.DeleteItem(ctx, item.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMoveToResale(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)

	for _, price := range []float64{0, -5} {
		_, err := r.MoveToResale(ctx, item.ID, price)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "price %v", price)
	}

	resale, err := r.MoveToResale(ctx, item.ID, 12.5)
	require.NoError(t, err)
	assert.Equal(t, model.StateResale, resale.State())
	require.NotNil(t, resale.ResalePrice)
	assert.Equal(t, 12.5, *resale.ResalePrice)
	assert.NotNil(t, resale.ResaleDate)

	_, err = r.MoveToResale(ctx, item.ID, 10)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	_, err = r.MoveToResale(ctx, 999, 10)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	report, err := r.ReportLost(ctx, model.ItemAttrs{Name: "Kindle"}, "carol", nil)
	require.NoError(t, err)
	_, err = r.MoveToResale(ctx, report.Item.ID, 10)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestMoveToResaleHoldingPeriod(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }
	r.HoldingPeriod = 30 * 24 * time.Hour

	item := registerPhone(t, r)

	_, err := r.MoveToResale(ctx, item.ID, 15)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	now = now.Add(31 * 24 * time.Hour)
	_, err = r.MoveToResale(ctx, item.ID, 15)
	assert.NoError(t, err)
}

// Scenario D: a claimed item cannot be moved to resale and is left as is.
func TestMoveToResaleClaimedItem(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)
	claim, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "alice"})
	require.NoError(t, err)
	_, err = r.DecideClaim(ctx, claim.ID, model.ActionAccept, "admin", "")
	require.NoError(t, err)

	before, err := r.GetItem(ctx, item.ID)
	require.NoError(t, err)

	_, err = r.MoveToResale(ctx, item.ID, 20)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	after, err := r.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// Scenarios B and C: claim, accept, and refuse a second decision.
func TestClaimAcceptFlow(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)

	claim, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "alice", Message: "lock screen is my cat"})
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusPending, claim.Status)
	assert.Equal(t, "Smartphone", claim.ItemName)

	requests := notificationsOf(t, r, "admin", model.NotificationClaimRequest)
	require.Len(t, requests, 1)
	var payload struct {
		ClaimID int64 `json:"claim_id"`
		ItemID  int64 `json:"item_id"`
	}
	require.NoError(t, json.Unmarshal(requests[0].Payload, &payload))
	assert.Equal(t, claim.ID, payload.ClaimID)
	assert.Equal(t, item.ID, payload.ItemID)

	decided, err := r.DecideClaim(ctx, claim.ID, model.ActionAccept, "admin", "student card checked")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusAccepted, decided.Status)
	assert.Equal(t, "admin", decided.Admin)
	require.NotNil(t, decided.UpdatedAt)

	got, err := r.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ClaimedBy)
	require.NotNil(t, got.ClaimedAt)
	assert.True(t, got.ClaimedAt.Equal(*decided.UpdatedAt))

	accepted := notificationsOf(t, r, "alice", model.NotificationClaimAccepted)
	require.Len(t, accepted, 1)
	assert.Contains(t, accepted[0].Message, DefaultCollectionPoint)

	// Any second decision fails on state, whatever its arguments.
	for _, again := range []struct{ action, admin string }{
		{model.ActionReject, "admin"},
		{model.ActionAccept, "admin"},
		{"bogus", "admin"},
		{model.ActionReject, ""},
	} {
		_, err = r.DecideClaim(ctx, claim.ID, again.action, again.admin, "")
		assert.True(t, apperr.Is(err, apperr.KindInvalidState), "%+v: %v", again, err)
	}
	assert.Len(t, notificationsOf(t, r, "alice", model.NotificationClaimRejected), 0)

	// The item is out of the candidate pool and cannot be claimed again.
	matches, err := r.PreviewMatches(ctx, model.MatchQuery{Name: "smartphone"})
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "bob"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestClaimReject(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)
	claim, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "bob"})
	require.NoError(t, err)

	decided, err := r.DecideClaim(ctx, claim.ID, model.ActionReject, "admin", "Wrong colour.")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusRejected, decided.Status)
	assert.Equal(t, "Wrong colour.", decided.DecisionNote)

	got, err := r.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateAvailable, got.State())

	rejected := notificationsOf(t, r, "bob", model.NotificationClaimRejected)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Message, "Wrong colour.")
}

func TestFileClaimValidation(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)
	report, err := r.ReportLost(ctx, model.ItemAttrs{Name: "Kindle"}, "carol", nil)
	require.NoError(t, err)

	_, err = r.FileClaim(ctx, ClaimRequest{Student: "alice"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = r.FileClaim(ctx, ClaimRequest{ItemID: item.ID})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = r.FileClaim(ctx, ClaimRequest{ItemID: 999, Student: "alice"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = r.FileClaim(ctx, ClaimRequest{ItemID: report.Item.ID, Student: "alice"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	// Another student's report cannot be attached.
	_, err = r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, ReportID: &report.Item.ID, Student: "alice"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	claims, err := r.ListClaims(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, claims)
	assert.Empty(t, notificationsOf(t, r, "admin", model.NotificationClaimRequest))
}

func TestAcceptResolvesLinkedReport(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)
	report, err := r.ReportLost(ctx, model.ItemAttrs{Name: "phone", Colour: "blue"}, "alice", nil)
	require.NoError(t, err)

	claim, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, ReportID: &report.Item.ID, Student: "alice"})
	require.NoError(t, err)
	_, err = r.DecideClaim(ctx, claim.ID, model.ActionAccept, "admin", "")
	require.NoError(t, err)

	resolved, err := r.GetItem(ctx, report.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", resolved.ClaimedBy)

	open, err := r.ListItems(ctx, model.ItemFilter{View: model.ViewReports})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestAcceptAfterItemDeleted(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)
	claim, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "alice"})
	require.NoError(t, err)
	require.NoError(t, r.DeleteItem(ctx, item.ID))

	_, err = r.DecideClaim(ctx, claim.ID, model.ActionAccept, "admin", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	got, err := r.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusPending, got.Status, "decision rolled back")
	assert.Nil(t, got.ItemID)
	assert.Empty(t, notificationsOf(t, r, "alice", model.NotificationClaimAccepted))
}

func TestAcceptSecondClaimOnSameItemRollsBack(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)
	first, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "alice"})
	require.NoError(t, err)
	second, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "bob"})
	require.NoError(t, err)

	_, err = r.DecideClaim(ctx, first.ID, model.ActionAccept, "admin", "")
	require.NoError(t, err)

	_, err = r.DecideClaim(ctx, second.ID, model.ActionAccept, "admin", "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	got, err := r.GetClaim(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusPending, got.Status)

	owner, err := r.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner.ClaimedBy)
}

func TestDecideClaimValidation(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)
	claim, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "alice"})
	require.NoError(t, err)

	_, err = r.DecideClaim(ctx, claim.ID, "maybe", "admin", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = r.DecideClaim(ctx, claim.ID, model.ActionAccept, " ", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = r.DecideClaim(ctx, 999, model.ActionAccept, "admin", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = r.DecideClaim(ctx, 999, "maybe", "admin", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	got, err := r.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusPending, got.Status)
}

// Scenario F: concurrent decisions on one claim; exactly one wins.
func TestConcurrentDecisions(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)
	claim, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "alice"})
	require.NoError(t, err)

	actions := []string{model.ActionAccept, model.ActionReject}
	errs := make([]error, len(actions))
	var wg sync.WaitGroup
	for i, action := range actions {
		wg.Add(1)
		go func(i int, action string) {
			defer wg.Done()
			_, errs[i] = r.DecideClaim(ctx, claim.ID, action, "admin", "")
		}(i, action)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "both decisions succeeded")
			winner = i
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindInvalidState), "unexpected error: %v", err)
	}
	require.NotEqual(t, -1, winner, "no decision succeeded")

	got, err := r.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	owner, err := r.GetItem(ctx, item.ID)
	require.NoError(t, err)

	if actions[winner] == model.ActionAccept {
		assert.Equal(t, model.ClaimStatusAccepted, got.Status)
		assert.Equal(t, "alice", owner.ClaimedBy)
	} else {
		assert.Equal(t, model.ClaimStatusRejected, got.Status)
		assert.Empty(t, owner.ClaimedBy)
	}

	decisions := len(notificationsOf(t, r, "alice", model.NotificationClaimAccepted)) +
		len(notificationsOf(t, r, "alice", model.NotificationClaimRejected))
	assert.Equal(t, 1, decisions)
}

func TestListClaims(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	item := registerPhone(t, r)
	_, err := r.FileClaim(ctx, ClaimRequest{ItemID: item.ID, Student: "alice"})
	require.NoError(t, err)

	pending, err := r.ListClaims(ctx, model.ClaimStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	accepted, err := r.ListClaims(ctx, model.ClaimStatusAccepted)
	require.NoError(t, err)
	assert.Empty(t, accepted)
	assert.NotNil(t, accepted)

	_, err = r.ListClaims(ctx, "lost")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = r.GetClaim(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateNotification(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	n, err := r.CreateNotification(ctx, NotificationRequest{Username: "alice", Message: "Office closed on Friday"})
	require.NoError(t, err)
	assert.Equal(t, model.NotificationInfo, n.Type)
	assert.False(t, n.Read)

	n, err = r.CreateNotification(ctx, NotificationRequest{
		Username: "alice",
		Message:  "Check item 4",
		Type:     model.NotificationMatch,
		Payload:  json.RawMessage(`{"item_id": 4}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item_id": 4}`, string(n.Payload))

	for _, req := range []NotificationRequest{
		{Message: "no user"},
		{Username: "alice"},
		{Username: "alice", Message: "x", Type: "urgent"},
		{Username: "alice", Message: "x", Payload: json.RawMessage(`[1, 2]`)},
	} {
		_, err := r.CreateNotification(ctx, req)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%+v", req)
	}

	list, err := r.ListNotifications(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMarkNotificationRead(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	n, err := r.CreateNotification(ctx, NotificationRequest{Username: "alice", Message: "hello"})
	require.NoError(t, err)

	err = r.MarkNotificationRead(ctx, n.ID, "bob")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, r.MarkNotificationRead(ctx, n.ID, "alice"))
	list, err := r.ListNotifications(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}

func TestListItemViews(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	phone := registerPhone(t, r)
	_, err := r.ReportLost(ctx, model.ItemAttrs{Name: "Kindle"}, "carol", nil)
	require.NoError(t, err)

	found, err := r.ListItems(ctx, model.ItemFilter{View: model.ViewFound})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, phone.ID, found[0].ID)

	mine, err := r.ListItems(ctx, model.ItemFilter{View: model.ViewReports, ReportedBy: "carol"})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = r.ListItems(ctx, model.ItemFilter{View: "lost"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPreviewMatchesRecordsNothing(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	registerPhone(t, r)

	matches, err := r.PreviewMatches(ctx, model.MatchQuery{Colour: "BLUE"})
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	count, err := store.CountOutbox(ctx, r.DB)
	require.NoError(t, err)
	assert.Zero(t, count)
	items, err := r.ListItems(ctx, model.ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestPreviewMatchesFoldsNonASCII(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	keys, err := r.RegisterFoundItem(ctx, model.ItemAttrs{Name: "Ključi", Colour: "Črna"}, nil)
	require.NoError(t, err)

	for _, colour := range []string{"Črna", "črna", "ČRNA"} {
		matches, err := r.PreviewMatches(ctx, model.MatchQuery{Colour: colour})
		require.NoError(t, err)
		if assert.Len(t, matches, 1, colour) {
			assert.Equal(t, keys.ID, matches[0].ID)
		}
	}
}

func TestWithFilesystemImages(t *testing.T) {
	database := db.NewTestDB(t)
	images, err := blob.NewFS(filepath.Join(t.TempDir(), "uploads"), 0)
	require.NoError(t, err)
	r := New(database, images, notify.New(database, 0))
	ctx := context.Background()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	item, err := r.RegisterFoundItem(ctx, model.ItemAttrs{Name: "Badge"}, &buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(item.ImagePath, blob.URLPrefix))

	_, err = r.RegisterFoundItem(ctx, model.ItemAttrs{Name: "Badge"}, strings.NewReader("not an image"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, r.DeleteItem(ctx, item.ID))
}
