package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/jsonapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workbridge/internal/chatstore"
	"workbridge/internal/model"
)

func applicationPayload(listingID string) string {
	return fmt.Sprintf(`{"data":{"type":"application",
		"attributes":{"cover_letter":"I can do this"},
		"relationships":{"listing":{"data":{"type":"listing","id":%q}}}}}`,
		listingID)
}

func reviewPayload(listingID string, reviewedID string, rating uint) string {
	return fmt.Sprintf(`{"data":{"type":"review",
		"attributes":{"rating":%d,"comment":"solid work"},
		"relationships":{
			"listing":{"data":{"type":"listing","id":%q}},
			"reviewed":{"data":{"type":"user","id":%q}}}}}`,
		rating, listingID, reviewedID)
}

func TestApplicationCreateEndpoint(t *testing.T) {
	db := testDB(t)
	employer := createTestUser(t, db, "employer", 100)
	executor := createTestUser(t, db, "executor", 200)
	order := createTestListing(t, db, employer, "order", "Landing page")

	t.Run("listing sent as jsonapi relationship", func(t *testing.T) {
		recorder := performAs(t, db, executor, http.MethodPost, "/application", ApplicationCreate,
			"/application", applicationPayload(order.ID))
		require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

		stored := &model.Application{}
		require.NoError(t, db.First(stored, "listing_id = ? AND applicant_id = ?", order.ID, executor.ID).Error)
		assert.Equal(t, "created", *stored.Status)
		assert.Equal(t, "I can do this", *stored.CoverLetter)
	})
	t.Run("applying twice", func(t *testing.T) {
		recorder := performAs(t, db, executor, http.MethodPost, "/application", ApplicationCreate,
			"/application", applicationPayload(order.ID))
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})
	t.Run("applying to your own listing", func(t *testing.T) {
		recorder := performAs(t, db, employer, http.MethodPost, "/application", ApplicationCreate,
			"/application", applicationPayload(order.ID))
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})
	t.Run("applying to a non-order listing", func(t *testing.T) {
		service := createTestListing(t, db, employer, "service", "Logo design")
		recorder := performAs(t, db, executor, http.MethodPost, "/application", ApplicationCreate,
			"/application", applicationPayload(service.ID))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
	t.Run("missing listing relationship", func(t *testing.T) {
		recorder := performAs(t, db, executor, http.MethodPost, "/application", ApplicationCreate,
			"/application", `{"data":{"type":"application","attributes":{"cover_letter":"hi"}}}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestApplicationAcceptOpensOrderChat(t *testing.T) {
	db := testDB(t)
	store := chatstore.New(db)
	employer := createTestUser(t, db, "employer", 100)
	executor := createTestUser(t, db, "executor", 200)
	order := createTestListing(t, db, employer, "order", "Landing page")

	recorder := performAs(t, db, executor, http.MethodPost, "/application", ApplicationCreate,
		"/application", applicationPayload(order.ID))
	require.Equal(t, http.StatusCreated, recorder.Code)
	application := &model.Application{}
	require.NoError(t, db.First(application, "listing_id = ?", order.ID).Error)

	accept := `{"data":{"type":"application","attributes":{"status":"accepted"}}}`

	t.Run("chat failure leaves the application decidable", func(t *testing.T) {
		require.NoError(t, db.Migrator().DropTable(&model.Chat{}))
		recorder := performAs(t, db, employer, http.MethodPatch, "/application/:id",
			ApplicationUpdate(store), "/application/"+application.ID, accept)
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)

		require.NoError(t, db.First(application, "id = ?", application.ID).Error)
		assert.Equal(t, "created", *application.Status, "a failed accept must not stick")
		require.NoError(t, db.AutoMigrate(&model.Chat{}))
	})
	t.Run("accepting opens the order chat", func(t *testing.T) {
		recorder := performAs(t, db, employer, http.MethodPatch, "/application/:id",
			ApplicationUpdate(store), "/application/"+application.ID, accept)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		assert.Contains(t, recorder.Header().Get("Location"), "/chat/")

		require.NoError(t, db.First(application, "id = ?", application.ID).Error)
		assert.Equal(t, "accepted", *application.Status)

		chat := &model.Chat{}
		require.NoError(t, db.First(chat, "related_id = ?", order.ID).Error)
		assert.Equal(t, "order", *chat.Type)
		assert.Equal(t, employer.ID, *chat.Participant1ID)
		assert.Equal(t, executor.ID, *chat.Participant2ID)
	})
	t.Run("deciding twice", func(t *testing.T) {
		recorder := performAs(t, db, employer, http.MethodPatch, "/application/:id",
			ApplicationUpdate(store), "/application/"+application.ID, accept)
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})
	t.Run("only the owner decides", func(t *testing.T) {
		recorder := performAs(t, db, executor, http.MethodPatch, "/application/:id",
			ApplicationUpdate(store), "/application/"+application.ID, accept)
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})
}

func TestReviewCreateEndpoint(t *testing.T) {
	db := testDB(t)
	employer := createTestUser(t, db, "employer", 100)
	executor := createTestUser(t, db, "executor", 200)
	order := createTestListing(t, db, employer, "order", "Landing page")

	t.Run("review refreshes the aggregate rating", func(t *testing.T) {
		recorder := performAs(t, db, employer, http.MethodPost, "/review", ReviewCreate,
			"/review", reviewPayload(order.ID, executor.ID, 4))
		require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

		created := &model.Review{}
		require.NoError(t, jsonapi.UnmarshalPayload(recorder.Body, created))
		require.NotNil(t, created.Rating)
		assert.Equal(t, uint(4), *created.Rating)

		reviewed := &model.User{}
		require.NoError(t, db.First(reviewed, "id = ?", executor.ID).Error)
		assert.Equal(t, 4.0, reviewed.Rating)

		recorder = performAs(t, db, employer, http.MethodPost, "/review", ReviewCreate,
			"/review", reviewPayload(order.ID, executor.ID, 2))
		require.Equal(t, http.StatusCreated, recorder.Code)
		require.NoError(t, db.First(reviewed, "id = ?", executor.ID).Error)
		assert.Equal(t, 3.0, reviewed.Rating)
	})
	t.Run("rating out of range", func(t *testing.T) {
		recorder := performAs(t, db, employer, http.MethodPost, "/review", ReviewCreate,
			"/review", reviewPayload(order.ID, executor.ID, 6))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
	t.Run("reviewing yourself", func(t *testing.T) {
		recorder := performAs(t, db, employer, http.MethodPost, "/review", ReviewCreate,
			"/review", reviewPayload(order.ID, employer.ID, 5))
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})
	t.Run("missing reviewed relationship", func(t *testing.T) {
		payload := fmt.Sprintf(`{"data":{"type":"review","attributes":{"rating":4},
			"relationships":{"listing":{"data":{"type":"listing","id":%q}}}}}`, order.ID)
		recorder := performAs(t, db, employer, http.MethodPost, "/review", ReviewCreate,
			"/review", payload)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}
