package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Ponloe/blog-core/internal/database"
	"github.com/Ponloe/blog-core/internal/users"
)

const currentUserKey = "auth.user"

var ErrForbidden = errors.New("forbidden")

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (uint, error)
}

// RequireAuth verifies the bearer token and loads its subject through the
// request's transaction. A token whose user no longer exists is rejected like
// any other bad token.
func RequireAuth(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthenticated(c)
			return
		}

		uid, err := tokens.Verify(tokenStr)
		if err != nil {
			unauthenticated(c)
			return
		}

		u, err := users.NewRepository(database.Tx(c)).FindByID(uid)
		if err != nil {
			if !errors.Is(err, users.ErrNotFound) {
				log.Printf("auth: load user %d: %v", uid, err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			unauthenticated(c)
			return
		}

		c.Set(currentUserKey, u)
		c.Next()
	}
}

// CurrentUser returns the user resolved by RequireAuth.
func CurrentUser(c *gin.Context) (*users.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*users.User)
	return u, ok && u != nil
}

// CheckOwner allows only the owner through.
func CheckOwner(requesterID, ownerID uint) error {
	if requesterID != ownerID {
		return ErrForbidden
	}
	return nil
}

func bearerToken(h string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthenticated(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
}
