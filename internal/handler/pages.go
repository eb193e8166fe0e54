package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"hackhub/internal/auth"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type pageData struct {
	Title    string
	Page     string
	SignedIn bool
	Role     string
	UserID   string
	Reason   string
}

var pages = []struct {
	path, page, title string
}{
	{"/", "home", "Events & Hackathons"},
	{auth.LoginPath, "login", "Sign in"},
	{"/signup", "signup", "Create account"},
	{auth.OnboardingPath, "onboarding", "Finish your profile"},
	{"/student", "student", "Student dashboard"},
	{"/admin", "admin", "Admin dashboard"},
	{"/admin/scan", "scan", "Attendance scanner"},
	{"/master", "master", "Master dashboard"},
}

func (h *Handler) registerPages(r *gin.Engine) {
	r.SetHTMLTemplate(pageTemplates)
	for _, p := range pages {
		r.GET(p.path, renderPage(p.page, p.title))
	}
}

func renderPage(page, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := pageData{Title: title, Page: page, Reason: c.Query("reason")}
		if p, ok := auth.PrincipalFrom(c); ok {
			data.SignedIn = true
			data.Role = p.Role.String()
			data.UserID = p.UserID
		}
		c.HTML(http.StatusOK, "page.html", data)
	}
}
