package jobsource

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/unkn0wn-root/curlparse/internal/errdef"
)

const (
	previewSamples    = 3
	previewDetailsMax = 100
)

type Sample struct {
	JobID      string `json:"job_id"`
	JobTitle   string `json:"job_title"`
	JobLink    string `json:"job_link"`
	JobDetails string `json:"job_details"`
	JobDate    string `json:"job_date"`
}

type Preview struct {
	Valid         bool     `json:"valid"`
	Message       string   `json:"message"`
	SampleData    []Sample `json:"sample_data,omitempty"`
	ExtractedJobs int      `json:"extracted_jobs,omitempty"`
	ErrorDetails  string   `json:"error_details,omitempty"`
}

// PreviewResponse applies the source's JSON paths to a sample API response
// and reports what the scraper would extract from it.
func (s Source) PreviewResponse(body []byte) (Preview, error) {
	if !gjson.ValidBytes(body) {
		return Preview{}, errdef.New(errdef.CodeValidation, "response is not valid JSON")
	}

	jobs := gjson.GetBytes(body, s.ResponseJSONPath)
	if !jobs.Exists() {
		return Preview{
			Message:      "Response JSON path not found in API response",
			ErrorDetails: "Path '" + s.ResponseJSONPath + "' does not exist",
		}, nil
	}
	if !jobs.IsArray() {
		return Preview{
			Message:      "Response JSON path does not point to an array",
			ErrorDetails: "Path '" + s.ResponseJSONPath + "' is not an array",
		}, nil
	}

	items := jobs.Array()
	if len(items) == 0 {
		return Preview{
			Valid:   true,
			Message: "Configuration is valid but no jobs found in response",
		}, nil
	}

	n := min(len(items), previewSamples)
	samples := make([]Sample, 0, n)
	for _, item := range items[:n] {
		samples = append(samples, s.sample(item.Raw))
	}
	return Preview{
		Valid:         true,
		Message:       "Configuration validated successfully",
		SampleData:    samples,
		ExtractedJobs: len(items),
	}, nil
}

func (s Source) sample(raw string) Sample {
	get := func(path string) string {
		if path == "" {
			return ""
		}
		return gjson.Get(raw, path).String()
	}
	out := Sample{
		JobID:      get(s.JobIDJSONPath),
		JobTitle:   get(s.JobTitleJSONPath),
		JobLink:    get(s.JobLinkJSONPath),
		JobDetails: cut(get(s.JobDetailsJSONPath), previewDetailsMax),
		JobDate:    get(s.JobDateJSONPath),
	}
	if s.JobLinkTemplate != "" && out.JobLink != "" {
		out.JobLink = expandLink(s.JobLinkTemplate, s.BaseURL, out.JobLink)
	}
	return out
}

// expandLink fills "{base_url}" and "{job_path}" placeholders.
func expandLink(tmpl, baseURL, jobPath string) string {
	r := strings.NewReplacer("{base_url}", baseURL, "{job_path}", jobPath)
	return r.Replace(tmpl)
}

func cut(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
