// Package validate checks form input before it is sent. Failures are
// apierr field errors and never reach the network layer.
package validate

import (
	"regexp"
	"strings"

	"github.com/kiranshivaraju/pilotwatch/internal/apierr"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

const (
	minPasswordLen = 6
	maxCompetitors = 5
	maxPageLimit   = 100
)

var (
	reEmail = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	reASIN  = regexp.MustCompile(`^[A-Z0-9]{10}$`)
)

// collector accumulates field errors so a form reports all of them at once.
type collector struct {
	fields []apierr.FieldError
}

func (c *collector) add(field, msg string) {
	c.fields = append(c.fields, apierr.FieldError{Field: field, Message: msg})
}

func (c *collector) result(text string) error {
	if len(c.fields) == 0 {
		return nil
	}
	return apierr.Fields(text, c.fields...)
}

// Login validates the login form.
func Login(req models.LoginRequest) error {
	var c collector
	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		c.add("email", "Email is required")
	case !reEmail.MatchString(email):
		c.add("email", "Invalid email address")
	}
	if len(req.Password) < minPasswordLen {
		c.add("password", "Password must be at least 6 characters")
	}
	return c.result("")
}

// ASIN validates a single product identifier.
func ASIN(field, asin string) error {
	var c collector
	checkASIN(&c, field, asin)
	return c.result("Invalid ASIN format")
}

func checkASIN(c *collector, field, asin string) {
	switch {
	case asin == "":
		c.add(field, "ASIN is required")
	case len(asin) != 10:
		c.add(field, "ASIN must be exactly 10 characters")
	case !reASIN.MatchString(asin):
		c.add(field, "ASIN must contain only uppercase letters and numbers")
	}
}

// CreateAnalysis validates the analysis-group form: a name, one main product
// and between one and five competitors, none repeating the main product.
func CreateAnalysis(req models.CreateAnalysisRequest) error {
	var c collector
	if strings.TrimSpace(req.Name) == "" {
		c.add("name", "Analysis group name is required")
	}
	if strings.TrimSpace(req.MainProductID) == "" {
		c.add("main_product_id", "Select a main product")
	}

	switch n := len(req.CompetitorProductIDs); {
	case n == 0:
		c.add("competitor_product_ids", "Add at least one competitor")
	case n > maxCompetitors:
		c.add("competitor_product_ids", "At most 5 competitors are allowed")
	}

	seen := make(map[string]bool, len(req.CompetitorProductIDs))
	for _, id := range req.CompetitorProductIDs {
		if id == req.MainProductID && id != "" {
			c.add("competitor_product_ids", "The main product cannot also be a competitor")
			break
		}
		if seen[id] {
			c.add("competitor_product_ids", "Competitors must be distinct")
			break
		}
		seen[id] = true
	}
	return c.result("")
}

// Pagination validates list paging parameters.
func Pagination(page, limit int) error {
	var c collector
	if page < 1 {
		c.add("page", "Page must be greater than 0")
	}
	switch {
	case limit < 1:
		c.add("limit", "Limit must be greater than 0")
	case limit > maxPageLimit:
		c.add("limit", "Limit cannot exceed 100")
	}
	return c.result("Invalid pagination")
}
