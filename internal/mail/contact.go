package mail

import (
	"fmt"
	"html"
	"strings"
)

const ContactSubject = "Contact form submission"

type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Number  string `json:"number"`
	Message string `json:"message"`
}

// ContactMessage renders a contact form as mail for to. An empty to sends the
// message back to the submitter.
func ContactMessage(to string, f ContactForm) Message {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Number = strings.TrimSpace(f.Number)
	f.Message = strings.TrimSpace(f.Message)
	if to == "" {
		to = f.Email
	}

	var b strings.Builder
	for _, row := range [][2]string{
		{"Name", f.Name},
		{"E-mail", f.Email},
		{"Number", f.Number},
		{"Message", f.Message},
	} {
		fmt.Fprintf(&b, "<span>%s:<i><b>%s</b></i></span><br />\n", row[0], html.EscapeString(row[1]))
	}

	text := fmt.Sprintf("Name: %s\nE-mail: %s\nNumber: %s\nMessage: %s\n", f.Name, f.Email, f.Number, f.Message)

	return Message{
		To:      to,
		Subject: ContactSubject,
		Text:    text,
		HTML:    b.String(),
	}
}
