package reset

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const ResetEmailSubject = "Password reset request"

var resetEmailTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Password Reset Request</title>
</head>
<body style="font-family:Arial,sans-serif; margin:0; padding:0; background-color:#f4f4f4; color:#333;">
  <div style="max-width:600px; margin:0 auto; background-color:#ffffff; padding:20px; border-radius:8px;">
    <div style="text-align:left;">
      <b>Hi {{.Name}},</b>
      <p style="line-height:1.6;">You requested to reset your password.</p>
      <p style="line-height:1.6;">Please, click the link below to reset your password. The link expires in {{.Minutes}} minutes.</p>
      <a href="{{.Link}}" style="display:inline-block; margin-top:10px; padding:10px 20px; color:#ffffff; background-color:#007bff; text-decoration:none; border-radius:5px;">Reset Password</a>
    </div>
    <div style="text-align:center; margin-top:20px; font-size:12px; color:#777;">
      <p>If you did not request a password reset, you can ignore this email.</p>
      <p>&copy; {{.Year}} DealDiscover. All rights reserved.</p>
    </div>
  </div>
</body>
</html>
`))

type resetEmailData struct {
	Name    string
	Link    string
	Minutes int
	Year    int
}

// RenderResetEmail builds the payload for the dispatcher. The link is placed in
// an href and escaped by html/template; name is escaped as text.
func RenderResetEmail(to, name, link string, ttl time.Duration, now time.Time) (EmailMessage, error) {
	if name == "" {
		name = to
	}
	var buf bytes.Buffer
	err := resetEmailTmpl.Execute(&buf, resetEmailData{
		Name:    name,
		Link:    link,
		Minutes: int(ttl / time.Minute),
		Year:    now.Year(),
	})
	if err != nil {
		return EmailMessage{}, err
	}
	text := fmt.Sprintf("Hi %s,\n\nOpen this link to reset your password (expires in %d minutes):\n\n%s\n",
		name, int(ttl/time.Minute), link)

	return EmailMessage{
		To:      to,
		Subject: ResetEmailSubject,
		HTML:    buf.String(),
		Text:    text,
		Link:    link,
	}, nil
}
