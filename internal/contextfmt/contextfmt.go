// Package contextfmt turns discrete profile and job form fields into the
// free-text context blobs fed to the assistant prompt.
package contextfmt

import "strings"

// Sentinels used when a context blob is empty.
const (
	NoProfileData = "No profile data provided."
	NoJobData     = "No job data provided."
	NoCareerGoals = "No career goals provided."
)

// FormatProfile appends one labeled line per non-empty field, in fixed order.
// Experience and Education are multi-line values, so their labels sit on a
// line of their own.
func FormatProfile(name, skills, about, experience, education string) string {
	var b strings.Builder
	if name != "" {
		b.WriteString("Name: " + name + "\n")
	}
	if skills != "" {
		b.WriteString("Skills: " + skills + "\n")
	}
	if about != "" {
		b.WriteString("About: " + about + "\n")
	}
	if experience != "" {
		b.WriteString("Experience:\n" + experience + "\n")
	}
	if education != "" {
		b.WriteString("Education:\n" + education)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return NoProfileData
	}
	return out
}

// FormatJob does the same for the target-job fields.
func FormatJob(title, company, skills, description string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString("Job Title: " + title + "\n")
	}
	if company != "" {
		b.WriteString("Company: " + company + "\n")
	}
	if skills != "" {
		b.WriteString("Skills: " + skills + "\n")
	}
	if description != "" {
		b.WriteString("Description: " + description)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return NoJobData
	}
	return out
}
