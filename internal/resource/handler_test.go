package resource_test

import (
	"fmt"
	"testing"

	"github.com/Kyz7/vanilla/internal/config"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/server"
	"github.com/Kyz7/vanilla/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv        *server.Server
	admin      *models.User
	alice      *models.User
	bob        *models.User
	adminToken string
	aliceToken string
	bobToken   string
}

func setup(t *testing.T) *fixture {
	srv := testutils.SetupTestApp(t, config.UserModeSimple)
	f := &fixture{srv: srv}
	f.admin = testutils.CreateTestUser(t, srv.DB, "admin@test.com", "password", 0, models.RoleSuperAdmin)
	f.alice = testutils.CreateTestUser(t, srv.DB, "alice@test.com", "password", 0, models.RoleUser)
	f.bob = testutils.CreateTestUser(t, srv.DB, "bob@test.com", "password", 0, models.RoleUser)
	f.adminToken = testutils.GetAuthToken(t, f.admin.ID)
	f.aliceToken = testutils.GetAuthToken(t, f.alice.ID)
	f.bobToken = testutils.GetAuthToken(t, f.bob.ID)
	return f
}

// create posts body to path and returns the new entity.
func (f *fixture) create(t *testing.T, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	resp, err := testutils.MakeRequest(f.srv.App, "POST", path, body, token)
	require.NoError(t, err)
	require.Equal(t, 201, resp.Code, resp.Body.String())

	var result testutils.StandardResponse
	testutils.ParseResponse(t, resp, &result)
	return result.Data.(map[string]interface{})
}

func idOf(data map[string]interface{}) int {
	return int(data["id"].(float64))
}

func listData(t *testing.T, f *fixture, path, token string) []interface{} {
	t.Helper()
	resp, err := testutils.MakeRequest(f.srv.App, "GET", path, nil, token)
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code, resp.Body.String())

	var result testutils.StandardResponse
	testutils.ParseResponse(t, resp, &result)
	return result.Data.([]interface{})
}

// ============================================
// POSTS
// ============================================

func TestCreatePostHandler(t *testing.T) {
	f := setup(t)

	t.Run("Success - Owner is stamped from the token", func(t *testing.T) {
		data := f.create(t, "/posts", map[string]interface{}{
			"some_text":    "hello",
			"json_columns": map[string]interface{}{"a": 1},
			"user_id":      f.bob.ID,
		}, f.aliceToken)

		assert.Equal(t, "hello", data["some_text"])
		assert.Equal(t, float64(f.alice.ID), data["user_id"])
		assert.Equal(t, models.AccessTenantPublic, data["access"])
		assert.Equal(t, map[string]interface{}{"a": float64(1)}, data["json_columns"])
		assert.Equal(t, false, data["deleted"])
	})

	t.Run("Error - Anonymous", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "POST", "/posts", map[string]interface{}{"some_text": "x"}, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)

		testutils.AssertError(t, resp, "UNAUTHORIZED")
	})

	t.Run("Error - Invalid access level", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "POST", "/posts", map[string]interface{}{"access": "secret"}, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)

		testutils.AssertError(t, resp, "VALIDATION_ERROR")
	})

	t.Run("Error - Wrong column type", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "POST", "/posts", map[string]interface{}{"some_text": 12}, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		details := result.Error.Details.(map[string]interface{})
		assert.Contains(t, details, "some_text")
	})
}

func TestGetPostHandler(t *testing.T) {
	f := setup(t)

	public := f.create(t, "/posts", map[string]interface{}{"some_text": "open", "access": models.AccessPublic}, f.aliceToken)
	private := f.create(t, "/posts", map[string]interface{}{"some_text": "mine", "access": models.AccessPrivate}, f.aliceToken)

	t.Run("Success - Owner reads a private post", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", fmt.Sprintf("/posts/%d", idOf(private)), nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
		testutils.AssertSuccess(t, resp)
	})

	t.Run("Success - Other users read a public post", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", fmt.Sprintf("/posts/%d", idOf(public)), nil, f.bobToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
	})

	t.Run("Error - Anonymous reads nothing", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", fmt.Sprintf("/posts/%d", idOf(public)), nil, "")
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.Code)
	})

	t.Run("Success - Super-admin reads a private post", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", fmt.Sprintf("/posts/%d", idOf(private)), nil, f.adminToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
	})

	t.Run("Error - Private post is hidden from others", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", fmt.Sprintf("/posts/%d", idOf(private)), nil, f.bobToken)
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.Code)

		testutils.AssertError(t, resp, "NOT_FOUND")
	})

	t.Run("Error - Malformed id", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", "/posts/abc", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.Code)
	})
}

func TestUpdatePostHandler(t *testing.T) {
	f := setup(t)

	post := f.create(t, "/posts", map[string]interface{}{"some_text": "draft", "access": models.AccessPublic}, f.aliceToken)
	path := fmt.Sprintf("/posts/%d", idOf(post))

	t.Run("Success - Owner updates", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "PUT", path, map[string]interface{}{
			"some_text": "final",
			"id":        9999,
			"user_id":   f.bob.ID,
		}, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, "final", data["some_text"])
		assert.Equal(t, float64(idOf(post)), data["id"])
		assert.Equal(t, float64(f.alice.ID), data["user_id"])
	})

	t.Run("Error - Non-owner may only read", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "PUT", path, map[string]interface{}{"some_text": "hijack"}, f.bobToken)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)

		testutils.AssertError(t, resp, "FORBIDDEN")

		var stored models.Post
		require.NoError(t, f.srv.DB.First(&stored, idOf(post)).Error)
		assert.Equal(t, "final", stored.SomeText)
	})

	t.Run("Error - Anonymous cannot see it", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "PUT", path, map[string]interface{}{"some_text": "x"}, "")
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.Code)
	})
}

func TestSoftDeleteAndRestoreHandler(t *testing.T) {
	f := setup(t)

	post := f.create(t, "/posts", map[string]interface{}{"some_text": "bye"}, f.aliceToken)
	path := fmt.Sprintf("/posts/%d", idOf(post))

	t.Run("Error - Non-owner cannot delete", func(t *testing.T) {
		public := f.create(t, "/posts", map[string]interface{}{"access": models.AccessPublic}, f.aliceToken)
		resp, err := testutils.MakeRequest(f.srv.App, "DELETE", fmt.Sprintf("/posts/%d", idOf(public)), nil, f.bobToken)
		assert.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
	})

	t.Run("Error - Restore an active post", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "POST", path+"/restore", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)

		testutils.AssertError(t, resp, "BAD_REQUEST")
	})

	t.Run("Success - Soft delete hides the post", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "DELETE", path, nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var stored models.Post
		require.NoError(t, f.srv.DB.First(&stored, idOf(post)).Error)
		assert.True(t, stored.Deleted)
		assert.NotNil(t, stored.DeletedAt)

		resp, err = testutils.MakeRequest(f.srv.App, "GET", path, nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.Code)
	})

	t.Run("Success - with-deleted needs READ_DELETED", func(t *testing.T) {
		aliceView := listData(t, f, "/posts?with-deleted=true", f.aliceToken)
		for _, item := range aliceView {
			assert.NotEqual(t, float64(idOf(post)), item.(map[string]interface{})["id"])
		}

		adminView := listData(t, f, "/posts?with-deleted=true", f.adminToken)
		found := false
		for _, item := range adminView {
			if item.(map[string]interface{})["id"] == float64(idOf(post)) {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("Success - Owner restores", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "POST", path+"/restore", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, false, data["deleted"])
		assert.Nil(t, data["deleted_at"])
	})

	t.Run("Success - Hard delete removes the row", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "DELETE", path+"/hard-delete", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var count int64
		f.srv.DB.Model(&models.Post{}).Where("id = ?", idOf(post)).Count(&count)
		assert.Zero(t, count)
	})
}

func TestDeleteAllHandler(t *testing.T) {
	f := setup(t)

	first := f.create(t, "/posts", map[string]interface{}{"some_text": "1"}, f.aliceToken)
	second := f.create(t, "/posts", map[string]interface{}{"some_text": "2"}, f.aliceToken)
	foreign := f.create(t, "/posts", map[string]interface{}{"some_text": "3", "access": models.AccessPublic}, f.bobToken)

	t.Run("Success - Skips ids the actor cannot delete", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "DELETE", "/posts/delete-all", map[string]interface{}{
			"id_list": []int{idOf(first), idOf(second), idOf(foreign), 9999},
		}, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.ElementsMatch(t, []interface{}{float64(idOf(first)), float64(idOf(second))}, result.Data)

		var count int64
		f.srv.DB.Model(&models.Post{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Success - Empty list", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "DELETE", "/posts/delete-all", map[string]interface{}{"id_list": []int{}}, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
	})
}

func TestListPostsHandler(t *testing.T) {
	f := setup(t)

	for _, text := range []string{"alpha", "beta", "gamma"} {
		f.create(t, "/posts", map[string]interface{}{"some_text": text, "access": models.AccessPublic}, f.aliceToken)
	}
	f.create(t, "/posts", map[string]interface{}{"some_text": "secret", "access": models.AccessPrivate}, f.aliceToken)

	t.Run("Success - Anonymous sees nothing", func(t *testing.T) {
		assert.Empty(t, listData(t, f, "/posts", ""))
	})

	t.Run("Success - Owner sees private posts", func(t *testing.T) {
		assert.Len(t, listData(t, f, "/posts", f.aliceToken), 4)
		assert.Len(t, listData(t, f, "/posts", f.bobToken), 3)
	})

	t.Run("Success - Equality filter", func(t *testing.T) {
		data := listData(t, f, "/posts?some_text=beta", f.aliceToken)
		require.Len(t, data, 1)
		assert.Equal(t, "beta", data[0].(map[string]interface{})["some_text"])
	})

	t.Run("Success - Like filter", func(t *testing.T) {
		data := listData(t, f, "/posts?some_text-like=%25mm%25", f.aliceToken)
		require.Len(t, data, 1)
		assert.Equal(t, "gamma", data[0].(map[string]interface{})["some_text"])
	})

	t.Run("Success - Range filter", func(t *testing.T) {
		all := listData(t, f, "/posts", f.aliceToken)
		second := int(all[1].(map[string]interface{})["id"].(float64))
		data := listData(t, f, fmt.Sprintf("/posts?id-min=%d&id-max=%d", second, second+1), f.aliceToken)
		assert.Len(t, data, 2)
	})

	t.Run("Success - Sorted descending", func(t *testing.T) {
		data := listData(t, f, "/posts?sort_by=some_text&decs=true&access=public", f.aliceToken)
		require.Len(t, data, 3)
		assert.Equal(t, "gamma", data[0].(map[string]interface{})["some_text"])
		assert.Equal(t, "alpha", data[2].(map[string]interface{})["some_text"])
	})

	t.Run("Success - Paged with meta", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", "/posts?page=2&limit=3", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Len(t, result.Data.([]interface{}), 1)
		require.NotNil(t, result.Meta)
		assert.Equal(t, 2, result.Meta.Page)
		assert.Equal(t, 3, result.Meta.Limit)
		assert.Equal(t, int64(4), result.Meta.Total)
		assert.Equal(t, int64(2), result.Meta.TotalPages)
	})

	t.Run("Success - Unpaged has no meta", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", "/posts?limit=2", nil, f.aliceToken)
		assert.NoError(t, err)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Len(t, result.Data.([]interface{}), 2)
		assert.Nil(t, result.Meta)
	})

	t.Run("Error - Invalid sort column", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", "/posts?sort_by=nope", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})

	t.Run("Error - Invalid page", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", "/posts?page=0", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})
}

func TestAuditTrail(t *testing.T) {
	f := setup(t)

	t.Run("Success - Mutations are recorded with the request id", func(t *testing.T) {
		post := f.create(t, "/posts", map[string]interface{}{"some_text": "tracked"}, f.aliceToken)

		var action models.UserAction
		require.NoError(t, f.srv.DB.Where("entity = ? AND name = ?", "posts", "created").First(&action).Error)
		assert.Equal(t, fmt.Sprint(idOf(post)), action.EntityID)
		assert.Equal(t, f.alice.ID, action.UserID)
		assert.NotEmpty(t, action.RequestID)
	})
}

// ============================================
// NOTES
// ============================================

func TestNoteFieldRules(t *testing.T) {
	f := setup(t)

	note := f.create(t, "/notes", map[string]interface{}{
		"name":    "first",
		"number1": 1,
		"number2": 2,
		"number3": 3,
	}, f.aliceToken)
	path := fmt.Sprintf("/notes/%d", idOf(note))

	t.Run("Success - Private and protected columns are not writable", func(t *testing.T) {
		assert.NotContains(t, note, "number1")
		assert.Equal(t, float64(0), note["number2"])
		assert.Equal(t, float64(3), note["number3"])

		var stored models.Note
		require.NoError(t, f.srv.DB.First(&stored, idOf(note)).Error)
		assert.Zero(t, stored.Number1)
	})

	t.Run("Success - Immutable column keeps its first value", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "PUT", path, map[string]interface{}{
			"name":    "renamed",
			"number3": 9,
		}, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		data := result.Data.(map[string]interface{})
		assert.Equal(t, "renamed", data["name"])
		assert.Equal(t, float64(3), data["number3"])
	})

	t.Run("Error - Required column missing", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "POST", "/notes", map[string]interface{}{"number3": 1}, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, "VALIDATION_ERROR", result.Error.Code)
		assert.Equal(t, map[string]interface{}{"name": "Should be specified"}, result.Error.Details)
	})

	t.Run("Error - Unique per owner", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "POST", "/notes", map[string]interface{}{"name": "renamed"}, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, map[string]interface{}{"name": "Already taken"}, result.Error.Details)

		f.create(t, "/notes", map[string]interface{}{"name": "renamed"}, f.bobToken)
	})
}

func TestIsUniqueHandler(t *testing.T) {
	f := setup(t)
	f.create(t, "/notes", map[string]interface{}{"name": "taken"}, f.aliceToken)

	t.Run("Success - Taken for the owner", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", "/notes/name/is-unique/taken", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, map[string]interface{}{"result": false}, result.Data)
	})

	t.Run("Success - Free for another owner", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", "/notes/name/is-unique/taken", nil, f.bobToken)
		assert.NoError(t, err)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, map[string]interface{}{"result": true}, result.Data)
	})

	t.Run("Error - Unknown field", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", "/notes/bogus/is-unique/x", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})

	t.Run("Error - Value of the wrong type", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", "/notes/number3/is-unique/abc", nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})
}

// ============================================
// COMMENTS
// ============================================

func TestCommentIntegrity(t *testing.T) {
	f := setup(t)
	post := f.create(t, "/posts", map[string]interface{}{"some_text": "topic", "access": models.AccessPublic}, f.aliceToken)

	t.Run("Success - Comment on a writable post", func(t *testing.T) {
		data := f.create(t, "/comments", map[string]interface{}{"post_id": idOf(post), "text": "first"}, f.aliceToken)
		assert.Equal(t, float64(idOf(post)), data["post_id"])
	})

	t.Run("Success - Include comments", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", fmt.Sprintf("/posts/%d?include=comments", idOf(post)), nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		comments := result.Data.(map[string]interface{})["comments"].([]interface{})
		require.Len(t, comments, 1)
		assert.Equal(t, "first", comments[0].(map[string]interface{})["text"])
	})

	t.Run("Error - Unknown relation", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "GET", fmt.Sprintf("/posts/%d?include=bogus", idOf(post)), nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})

	t.Run("Error - Missing post", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "POST", "/comments", map[string]interface{}{"post_id": 9999, "text": "lost"}, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, map[string]interface{}{"post_id": "9999 : object with such id not found"}, result.Error.Details)
	})

	t.Run("Error - Post the actor cannot write", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.srv.App, "POST", "/comments", map[string]interface{}{"post_id": idOf(post), "text": "spam"}, f.bobToken)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Contains(t, result.Error.Details, "post_id")
	})

	t.Run("Success - Hard delete leaves other owners' comments alone", func(t *testing.T) {
		foreign := f.create(t, "/comments", map[string]interface{}{
			"post_id": idOf(post),
			"text":    "moderator note",
			"access":  models.AccessPrivate,
		}, f.adminToken)

		resp, err := testutils.MakeRequest(f.srv.App, "DELETE", fmt.Sprintf("/posts/%d/hard-delete", idOf(post)), nil, f.aliceToken)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		var posts int64
		f.srv.DB.Model(&models.Post{}).Where("id = ?", idOf(post)).Count(&posts)
		assert.Zero(t, posts)

		var comments int64
		f.srv.DB.Model(&models.Comment{}).Where("post_id = ?", idOf(post)).Count(&comments)
		assert.Equal(t, int64(2), comments)

		var kept models.Comment
		require.NoError(t, f.srv.DB.First(&kept, idOf(foreign)).Error)
		assert.Equal(t, f.admin.ID, kept.UserID)
	})
}
