package smtp

import "html/template"

// Template keys match the flows that request them: account activation during
// signup and the forgot-password reset.
const (
	TemplateUserActivation = "user-activation-mail"
	TemplateForgotPassword = "forgot-password"
)

var templates = map[string]*template.Template{
	TemplateUserActivation: template.Must(template.New(TemplateUserActivation).Parse(`<html>
<body style="font-family: sans-serif; color: #1f2933;">
  <h2>Welcome to {{.CompanyName}}, {{.Data.Name}}!</h2>
  <p>Use the code below to verify your email address and activate your account.</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Data.OTPCode}}</p>
  <p>This code expires in {{.Data.ExpiryMinutes}} minutes.</p>
  <p>If you did not create an account, you can ignore this email.</p>
  <p>— The {{.CompanyName}} team &lt;{{.SupportEmail}}&gt;</p>
</body>
</html>`)),

	TemplateForgotPassword: template.Must(template.New(TemplateForgotPassword).Parse(`<html>
<body style="font-family: sans-serif; color: #1f2933;">
  <h2>Hi {{.Data.Name}},</h2>
  <p>We received a request to reset your {{.CompanyName}} password. Enter the code below to continue.</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Data.OTPCode}}</p>
  <p>This code expires in {{.Data.ExpiryMinutes}} minutes.</p>
  <p>If you did not request a password reset, no action is needed.</p>
  <p>— The {{.CompanyName}} team &lt;{{.SupportEmail}}&gt;</p>
</body>
</html>`)),
}
