package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/store"
)

// --- User Registration ---

// RegisterUserInput is what a new account submits. The role decides whether
// the account may post gigs, apply to them, or both; admin is never
// self-assigned.
type RegisterUserInput struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=client seeker both"`
}

// Register is the handler for POST /v1/register
func (h *Handlers) Register(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input RegisterUserInput
	if !bindJSON(c, &input) {
		return
	}
	input.FullName = strings.TrimSpace(input.FullName)
	if input.FullName == "" {
		h.respondError(c, apperr.Validation("Full name is required"))
		return
	}

	// 2. --- Hash the Password ---
	var password models.Password
	if err := password.Set(input.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	// 3. --- Create User Model ---
	now := time.Now()
	user := &models.User{
		Role:         input.Role,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: password.Hash,
		FullName:     input.FullName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 4. --- Save to Database ---
	if err := h.Store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			h.respondError(c, apperr.Conflict("An account with this email already exists"))
			return
		}
		h.respondError(c, apperr.Storage(err, "create user"))
		return
	}

	h.logger().Info("user registered", "user_id", user.ID, "role", user.Role)

	// 5. --- Send Success Response ---
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"user":    user,
	})
}

// --- Login ---

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login is the handler for POST /v1/login
func (h *Handlers) Login(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input LoginInput
	if !bindJSON(c, &input) {
		return
	}

	// 2. --- Find User By Email ---
	user, err := h.Store.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "unauthenticated"})
			return
		}
		h.respondError(c, apperr.Storage(err, "find user"))
		return
	}

	// 3. --- Check Password ---
	password := models.Password{Hash: user.PasswordHash}
	match, err := password.Matches(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check password"})
		return
	}
	if !match {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "unauthenticated"})
		return
	}

	// 4. --- Generate JWT ---
	token, err := h.Tokens.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	// 5. --- Send Success Response ---
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user": gin.H{
			"id":      user.ID,
			"role":    user.Role,
			"isAdmin": user.IsAdmin,
		},
	})
}

// --- Profile ---

// GetMyProfile is the handler for GET /v1/profile/me
func (h *Handlers) GetMyProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}

// UpdateProfileInput uses pointers so omitted fields are left unchanged.
type UpdateProfileInput struct {
	FullName *string  `json:"fullName"`
	Headline *string  `json:"headline"`
	Bio      *string  `json:"bio"`
	Location *string  `json:"location"`
	Skills   []string `json:"skills"`
}

// UpdateMyProfile is the handler for PUT /v1/profile/me
func (h *Handlers) UpdateMyProfile(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input UpdateProfileInput
	if !bindJSON(c, &input) {
		return
	}

	// 2. --- Merge onto the stored profile ---
	user := currentUser(c)
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			h.respondError(c, apperr.Validation("Full name cannot be empty"))
			return
		}
		user.FullName = name
	}
	if input.Headline != nil {
		user.Headline = optional(*input.Headline)
	}
	if input.Bio != nil {
		user.Bio = optional(*input.Bio)
	}
	if input.Location != nil {
		user.Location = optional(*input.Location)
	}
	if input.Skills != nil {
		user.Skills = cleanSkills(input.Skills)
	}
	user.UpdatedAt = time.Now()

	// 3. --- Save ---
	if err := h.Store.UpdateProfile(c.Request.Context(), user); err != nil {
		h.respondError(c, apperr.Storage(err, "update profile"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated",
		"user":    user,
	})
}

// optional turns a blank string into a cleared field.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func cleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
