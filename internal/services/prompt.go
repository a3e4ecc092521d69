package services

import (
	"fmt"
	"strings"
	"time"

	"alfredoptarigan/job-orchestrator/internal/models"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

const jsonOnly = "Respond with a single JSON object and nothing else."

// StructureResume turns extracted resume text into a profile.
func (pb *PromptBuilder) StructureResume(rawText string) CompletionRequest {
	return CompletionRequest{
		Stage: StageStructureResume,
		SystemPrompt: `You are a resume parser. Extract the candidate's profile from the resume text.

Return JSON in the following format:
{
  "full_name": "<string>",
  "email": "<string>",
  "phone": "<string>",
  "location": "<string>",
  "summary": "<2-3 sentence professional summary>",
  "skills": ["<skill>", ...],
  "experience": [{"title": "", "company": "", "start": "", "end": "", "highlights": [""]}],
  "projects": [{"name": "", "description": "", "technologies": [""]}],
  "education": [{"institution": "", "degree": "", "year": ""}],
  "certifications": ["<string>"],
  "preferred_roles": ["<string>"]
}

` + jsonOnly,
		UserContent: fmt.Sprintf("RESUME TEXT:\n%s", rawText),
	}
}

// NormalizeJob extracts a structured posting from scraped page text.
func (pb *PromptBuilder) NormalizeJob(jobURL, pageText string) CompletionRequest {
	return CompletionRequest{
		Stage: StageNormalizeJob,
		SystemPrompt: `You are a job posting analyst. Extract the posting details from the page text.

Return JSON in the following format:
{
  "company_name": "<string>",
  "job_title": "<string>",
  "required_skills": ["<skill>", ...],
  "industry": "<string>",
  "location": "<string>",
  "hr_contact_name": "<string>",
  "hr_email": "<string>",
  "tech_stack": ["<technology>", ...],
  "description_summary": "<3-5 sentence summary>",
  "experience_level": "<junior|mid|senior|lead>",
  "employment_type": "<full-time|part-time|contract|internship>"
}

Use empty strings for anything the page does not state. ` + jsonOnly,
		UserContent: fmt.Sprintf("JOB URL: %s\n\nPAGE TEXT:\n%s", jobURL, pageText),
	}
}

// FitAnalysis scores the tenant's profile against the job.
func (pb *PromptBuilder) FitAnalysis(tenant *models.Tenant, job *models.Job) CompletionRequest {
	return CompletionRequest{
		Stage: StageFitAnalysis,
		SystemPrompt: `You are an expert technical recruiter scoring how well a candidate fits a job.

Score from 0 to 100, where 75 or more means the candidate should apply.

Return JSON in the following format:
{
  "fit_score": <0-100>,
  "gap_analysis": ["<missing or weak requirement>", ...],
  "alignment_report": "<3-5 sentences on where the candidate matches>",
  "strategic_angle": "<one sentence on how to position the application>"
}

Be objective. Reference concrete items from the profile. ` + jsonOnly,
		UserContent: fmt.Sprintf("CANDIDATE PROFILE:\n%s\n\nJOB:\n%s", formatProfile(tenant), formatJob(job)),
	}
}

func (pb *PromptBuilder) TailorResume(tenant *models.Tenant, job *models.Job) CompletionRequest {
	return CompletionRequest{
		Stage: StageTailorResume,
		SystemPrompt: `You are a resume writer. Rewrite the candidate's resume for the target job.
Keep every claim truthful to the profile. Lead with the experience most relevant to the job.

Return JSON in the following format:
{
  "tailored_summary": "<3-4 sentence summary aimed at this job>",
  "tailored_experience": [{"title": "", "company": "", "highlights": [""]}]
}

` + jsonOnly,
		UserContent: fmt.Sprintf("CANDIDATE PROFILE:\n%s\n\nTARGET JOB:\n%s\n\nSTRATEGIC ANGLE:\n%s",
			formatProfile(tenant), formatJob(job), job.StrategicAngle),
	}
}

func (pb *PromptBuilder) HumanizeResume(tailoredText string) CompletionRequest {
	return CompletionRequest{
		Stage: StageHumanizeResume,
		SystemPrompt: `You edit machine-written resumes so they read like a person wrote them.
Vary sentence length, drop buzzwords and keep every fact unchanged.

Return JSON in the following format:
{
  "humanized_text": "<the full rewritten resume>",
  "ai_detection_score": <0-100, your estimate that a detector flags the text as AI-written>
}

` + jsonOnly,
		UserContent: fmt.Sprintf("RESUME:\n%s", tailoredText),
	}
}

func (pb *PromptBuilder) DraftEmail(tenant *models.Tenant, job *models.Job, resumeText string) CompletionRequest {
	return CompletionRequest{
		Stage: StageDraftEmail,
		SystemPrompt: fmt.Sprintf(`You write short cold application emails to hiring teams.
Write as %s. Keep it under 180 words, specific to the role, with one clear call to action.

Return JSON in the following format:
{
  "subject_line": "<string>",
  "email_body": "<plain text body, signed with the candidate's name>"
}

%s`, tenant.FullName, jsonOnly),
		UserContent: fmt.Sprintf("JOB:\n%s\n\nCONTACT: %s\n\nTAILORED RESUME:\n%s",
			formatJob(job), job.Company.HRContactName, resumeText),
	}
}

// HumanizeEmail serves application emails, replies and confirmations alike.
func (pb *PromptBuilder) HumanizeEmail(subject, body string) CompletionRequest {
	return CompletionRequest{
		Stage: StageHumanizeEmail,
		SystemPrompt: `You edit emails so they sound natural and personal. Keep the meaning, facts and length.

Return JSON in the following format:
{
  "humanized_subject": "<string>",
  "humanized_body": "<string>"
}

` + jsonOnly,
		UserContent: fmt.Sprintf("SUBJECT: %s\n\nBODY:\n%s", subject, body),
	}
}

func (pb *PromptBuilder) ClassifyReply(msg *InboundMessage, matched *models.Job) CompletionRequest {
	thread := "No matching application was found."
	if matched != nil {
		thread = fmt.Sprintf("This is a reply about the %s application.", matched.JobTitle)
	}

	return CompletionRequest{
		Stage: StageClassifyReply,
		SystemPrompt: `You triage replies that a job seeker received from employers.

Return JSON in the following format:
{
  "reply_type": "<INTERVIEW_INVITE|FOLLOW_UP_REQUIRED|REJECTION|INFORMATION_REQUEST|OTHER>",
  "urgency_level": "<LOW|MEDIUM|HIGH>",
  "requires_user_action": <true|false>,
  "summary": "<one sentence>"
}

` + jsonOnly,
		UserContent: fmt.Sprintf("%s\n\n%s", thread, formatMessage(msg)),
	}
}

func (pb *PromptBuilder) DraftReply(tenant *models.Tenant, msg *InboundMessage, summary string) CompletionRequest {
	return CompletionRequest{
		Stage: StageDraftReply,
		SystemPrompt: fmt.Sprintf(`You write brief, polite replies to recruiters on behalf of %s.
Answer what was asked using only the candidate profile. Say so plainly if the profile lacks the answer.

Return JSON in the following format:
{
  "subject_line": "<string, usually Re: the original subject>",
  "email_body": "<plain text body>"
}

%s`, tenant.FullName, jsonOnly),
		UserContent: fmt.Sprintf("CANDIDATE PROFILE:\n%s\n\nSUMMARY OF THEIR MESSAGE: %s\n\n%s",
			formatProfile(tenant), summary, formatMessage(msg)),
	}
}

func (pb *PromptBuilder) Acknowledge(tenant *models.Tenant, msg *InboundMessage) CompletionRequest {
	return CompletionRequest{
		Stage: StageAcknowledge,
		SystemPrompt: fmt.Sprintf(`You write a gracious two or three sentence acknowledgment of a rejection on behalf of %s.

Return JSON in the following format:
{
  "acknowledgment_text": "<string>"
}

%s`, tenant.FullName, jsonOnly),
		UserContent: formatMessage(msg),
	}
}

func (pb *PromptBuilder) ExtractInterview(msg *InboundMessage) CompletionRequest {
	return CompletionRequest{
		Stage: StageExtractInterview,
		SystemPrompt: `You extract interview details from an invitation email.

Return JSON in the following format:
{
  "interview_date": "<YYYY-MM-DD>",
  "interview_time": "<HH:MM, 24-hour>",
  "timezone": "<IANA zone such as Europe/Berlin>",
  "duration_minutes": <integer>,
  "interview_mode": "<VIRTUAL|ONSITE|PHONE>",
  "interviewer_name": "<string>",
  "interviewer_email": "<string>",
  "meeting_link": "<string>",
  "location": "<string>"
}

` + jsonOnly,
		UserContent: formatMessage(msg),
	}
}

func (pb *PromptBuilder) DraftConfirmation(tenant *models.Tenant, interview *models.Interview, job *models.Job) CompletionRequest {
	when := interview.ScheduledAt.Format(time.RFC1123)
	if loc, err := time.LoadLocation(interview.Timezone); err == nil {
		when = interview.ScheduledAt.In(loc).Format("Monday, 2 January 2006 at 15:04 MST")
	}

	return CompletionRequest{
		Stage: StageDraftConfirmation,
		SystemPrompt: fmt.Sprintf(`You write short interview confirmation emails on behalf of %s.
Confirm the time and format and thank the interviewer.

Return JSON in the following format:
{
  "subject_line": "<string>",
  "email_body": "<plain text body>"
}

%s`, tenant.FullName, jsonOnly),
		UserContent: fmt.Sprintf("ROLE: %s\nWHEN: %s\nDURATION: %d minutes\nFORMAT: %s\nINTERVIEWER: %s\nLINK: %s\nLOCATION: %s",
			job.JobTitle, when, interview.DurationMinutes, interview.Mode,
			interview.InterviewerName, interview.MeetingLink, interview.Location),
	}
}

func formatProfile(t *models.Tenant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", t.FullName)
	if t.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", t.Location)
	}
	fmt.Fprintf(&b, "Summary: %s\n", t.Summary)
	fmt.Fprintf(&b, "Skills: %s\n", string(t.Skills))
	fmt.Fprintf(&b, "Experience: %s\n", string(t.Experience))
	if len(t.Projects) > 0 {
		fmt.Fprintf(&b, "Projects: %s\n", string(t.Projects))
	}
	if len(t.Education) > 0 {
		fmt.Fprintf(&b, "Education: %s\n", string(t.Education))
	}
	if len(t.Certifications) > 0 {
		fmt.Fprintf(&b, "Certifications: %s\n", string(t.Certifications))
	}
	return b.String()
}

func formatJob(j *models.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", j.JobTitle)
	if j.Company.CompanyName != "" {
		fmt.Fprintf(&b, "Company: %s\n", j.Company.CompanyName)
	}
	if j.ExperienceLevel != "" {
		fmt.Fprintf(&b, "Level: %s\n", j.ExperienceLevel)
	}
	fmt.Fprintf(&b, "Required skills: %s\n", string(j.RequiredSkills))
	summary := j.DescriptionSummary
	if summary == "" {
		summary = j.DescriptionRaw
	}
	fmt.Fprintf(&b, "Description: %s\n", summary)
	return b.String()
}

func formatMessage(msg *InboundMessage) string {
	return fmt.Sprintf("FROM: %s\nSUBJECT: %s\n\nBODY:\n%s", msg.Sender, msg.Subject, msg.Body)
}
