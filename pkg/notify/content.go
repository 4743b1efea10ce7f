package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

type emailContent struct {
	Subject string
	Text    string
	HTML    string
}

var emailSubjects = map[Kind]string{
	KindWelcome:       "Welcome to Teachers Attendance System - Your QR Code",
	KindCheckIn:       "Attendance Check In Confirmation",
	KindCheckOut:      "Attendance Check Out Confirmation",
	KindMissedSignIn:  "You missed signing in today",
	KindMissedSignOut: "You missed signing out today",
}

var emailHTML = template.Must(template.New("email").Parse(`{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: #2c3e50;">{{.Heading}}</h2>
<p>Dear {{.Name}},</p>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .QRSrc}}<p style="text-align: center;"><img src="{{.QRSrc}}" alt="QR Code" width="200" height="200"></p>
<p style="text-align: center;">Your ID: <strong>{{.UniqueID}}</strong></p>
{{end}}<p>Best regards,<br>{{.Sender}}</p>
</div></body></html>{{end}}`))

type htmlView struct {
	Heading    string
	Name       string
	Paragraphs []string
	QRSrc      template.URL
	UniqueID   string
	Sender     string
}

func renderEmail(msg Message, sender string) (emailContent, error) {
	subject, ok := emailSubjects[msg.Kind]
	if !ok {
		return emailContent{}, fmt.Errorf("no email template for kind %q", msg.Kind)
	}
	view := htmlView{Heading: subject, Name: msg.Recipient.Name, Sender: sender, UniqueID: msg.Fields.UniqueID}
	f := msg.Fields
	switch msg.Kind {
	case KindWelcome:
		view.Heading = "Welcome to the Teachers Attendance System"
		view.Paragraphs = []string{
			"You have been registered in the attendance system. Present the QR code below at the attendance station to check in and check out.",
			"Keep this code safe. If scanning fails, the station accepts your ID for manual entry.",
		}
		for _, a := range msg.Attachments {
			if a.Inline {
				view.QRSrc = template.URL("cid:" + a.Filename)
				break
			}
		}
	case KindCheckIn:
		view.Paragraphs = []string{fmt.Sprintf("Your check in was recorded at %s on %s.", f.Time, f.Date)}
		if f.Status != "" {
			view.Paragraphs = append(view.Paragraphs, "Status: "+f.Status+".")
		}
	case KindCheckOut:
		view.Paragraphs = []string{fmt.Sprintf("Your check out was recorded at %s on %s. Thank you for your work today.", f.Time, f.Date)}
	case KindMissedSignIn:
		view.Paragraphs = []string{fmt.Sprintf("Our records show you did not sign in on %s. Please contact your admin if this is an error.", f.Date)}
	case KindMissedSignOut:
		view.Paragraphs = []string{fmt.Sprintf("Our records show you did not sign out on %s. Please remember to check out next time.", f.Date)}
	}

	var html bytes.Buffer
	if err := emailHTML.ExecuteTemplate(&html, "layout", view); err != nil {
		return emailContent{}, fmt.Errorf("render email: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Dear %s,\n\n", view.Name)
	for _, p := range view.Paragraphs {
		text.WriteString(p)
		text.WriteString("\n\n")
	}
	if view.QRSrc != "" {
		fmt.Fprintf(&text, "Your ID: %s\n\n", view.UniqueID)
	}
	fmt.Fprintf(&text, "Best regards,\n%s\n", sender)

	return emailContent{Subject: subject, Text: text.String(), HTML: html.String()}, nil
}

func renderSMS(msg Message) (string, error) {
	name := msg.Recipient.Name
	f := msg.Fields
	switch msg.Kind {
	case KindWelcome:
		return fmt.Sprintf("Welcome %s! You have been added to the Teachers Attendance System. Your QR code has been sent to your email. Your ID is %s.", name, f.UniqueID), nil
	case KindCheckIn:
		return fmt.Sprintf("Hi %s, check in recorded at %s (%s).", name, f.Time, f.Status), nil
	case KindCheckOut:
		return fmt.Sprintf("Hi %s, check out recorded at %s. See you tomorrow!", name, f.Time), nil
	case KindMissedSignIn:
		return fmt.Sprintf("Hello %s, you did not sign in on %s. Contact your admin if this is an error.", name, f.Date), nil
	case KindMissedSignOut:
		return fmt.Sprintf("Good evening %s! You did not check out on %s. Please remember to check out using your QR code.", name, f.Date), nil
	default:
		return "", fmt.Errorf("no sms template for kind %q", msg.Kind)
	}
}
