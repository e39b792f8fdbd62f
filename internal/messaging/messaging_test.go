package messaging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/store"
)

type lastRecipient struct{ userID int64 }

func (l *lastRecipient) Notify(_ context.Context, userID int64, _, _ string) error {
	l.userID = userID
	return nil
}

func seed(t *testing.T) (*store.Memory, *models.Application) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	gig := &models.Gig{ClientID: 1, Title: "Walk the dog", Status: models.GigOpen}
	require.NoError(t, mem.CreateGig(ctx, gig))
	app := &models.Application{GigID: gig.ID, ClientID: 1, ApplicantID: 2, Status: models.ApplicationPending}
	require.NoError(t, mem.CreateApplication(ctx, app, models.GigApplicantCap, gig.CreatedAt))
	return mem, app
}

func TestSendNotifiesTheOtherParty(t *testing.T) {
	mem, app := seed(t)
	notifier := &lastRecipient{}
	svc := NewService(mem, mem, notifier, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, 2, app.ID, "When should I come by?")
	require.NoError(t, err)
	assert.Equal(t, int64(1), notifier.userID)

	_, err = svc.Send(ctx, 1, app.ID, "Saturday morning")
	require.NoError(t, err)
	assert.Equal(t, int64(2), notifier.userID)

	thread, err := svc.List(ctx, 2, app.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "When should I come by?", thread[0].Body)
	assert.Equal(t, "Saturday morning", thread[1].Body)
}

func TestOutsidersCannotReadOrWrite(t *testing.T) {
	mem, app := seed(t)
	svc := NewService(mem, mem, nil, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, 3, app.ID, "hello")
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))
	_, err = svc.List(ctx, 3, app.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))
	_, err = svc.List(ctx, 1, 9999)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSendValidatesBody(t *testing.T) {
	mem, app := seed(t)
	svc := NewService(mem, mem, nil, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, 1, app.ID, "   ")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Send(ctx, 1, app.ID, strings.Repeat("a", MaxBodyLength+1))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
