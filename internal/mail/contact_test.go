package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactMessage_EscapesHTML(t *testing.T) {
	m := ContactMessage("owner@example.com", ContactForm{
		Name:    "<script>alert(1)</script>",
		Email:   "visitor@example.com",
		Number:  "555-0100",
		Message: "Tom & Jerry",
	})

	assert.Equal(t, "owner@example.com", m.To)
	assert.Equal(t, ContactSubject, m.Subject)
	assert.NotContains(t, m.HTML, "<script>")
	assert.Contains(t, m.HTML, "&lt;script&gt;")
	assert.Contains(t, m.HTML, "Tom &amp; Jerry")
	assert.Contains(t, m.Text, "Number: 555-0100")
}

func TestContactMessage_DefaultsToSubmitter(t *testing.T) {
	m := ContactMessage("", ContactForm{Name: "Ann", Email: " ann@example.com "})
	assert.Equal(t, "ann@example.com", m.To)
}
