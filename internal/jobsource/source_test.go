package jobsource

import (
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"

	"github.com/unkn0wn-root/curlparse/internal/curl"
	"github.com/unkn0wn-root/curlparse/internal/errdef"
)

func samplePaths() Paths {
	return Paths{
		PaginationKey:    "offset",
		ResponseJSONPath: "jobPostings",
		JobIDJSONPath:    "id",
		JobTitleJSONPath: "title",
		JobLinkJSONPath:  "externalPath",
	}
}

func mustParse(t *testing.T, cmd string) *curl.Request {
	t.Helper()
	req, err := curl.Parse(cmd)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return req
}

func TestFromRequestPost(t *testing.T) {
	req := mustParse(t, heredoc.Doc(`
		curl 'https://acme.wd5.myworkdayjobs.com/wday/cxs/acme/jobs?lang=en' \
		  -X POST \
		  -H 'Content-Type: application/json' \
		  --data-raw '{"limit":20,"offset":0,"searchText":""}'
	`))
	src, err := FromRequest(" Acme ", req, samplePaths())
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	if src.Name != "Acme" || src.Method != "POST" {
		t.Fatalf("unexpected source %+v", src)
	}
	if src.BaseURL != "https://acme.wd5.myworkdayjobs.com/wday/cxs/acme/jobs" {
		t.Fatalf("unexpected base url %q", src.BaseURL)
	}
	if src.QueryParams != "lang=en" {
		t.Fatalf("unexpected query %q", src.QueryParams)
	}
	if src.RequestURL() != req.FullURL {
		t.Fatalf("expected request url %q, got %q", req.FullURL, src.RequestURL())
	}
	if src.CareerSiteType != CareerSiteGeneric {
		t.Fatalf("unexpected career site type %q", src.CareerSiteType)
	}

	headers, err := src.HeadersJSON()
	if err != nil {
		t.Fatalf("headers json: %v", err)
	}
	if headers != `{"Content-Type":"application/json"}` {
		t.Fatalf("unexpected headers json %s", headers)
	}
	body, err := src.BodyJSON()
	if err != nil {
		t.Fatalf("body json: %v", err)
	}
	if body != `{"limit":20,"offset":0,"searchText":""}` {
		t.Fatalf("unexpected body json %s", body)
	}
}

func TestFromRequestGetWithoutBody(t *testing.T) {
	req := mustParse(t, "curl https://jobs.x.test/api/list?page=1")
	src, err := FromRequest("X", req, samplePaths())
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	if src.Body != nil {
		t.Fatalf("expected no body, got %v", src.Body)
	}
	body, _ := src.BodyJSON()
	if body != "" {
		t.Fatalf("expected empty body json, got %q", body)
	}
	headers, _ := src.HeadersJSON()
	if headers != "{}" {
		t.Fatalf("expected empty headers object, got %q", headers)
	}

	row, err := src.Row()
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	want := Row{RequestURL: "https://jobs.x.test/api/list?page=1", HeadersJSON: "{}"}
	if row != want {
		t.Fatalf("expected %+v, got %+v", want, row)
	}
}

func TestFromRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		srcName string
		paths   Paths
		want    string
	}{
		{
			name:    "method",
			cmd:     "curl https://x.test -X DELETE",
			srcName: "X",
			paths:   samplePaths(),
			want:    "method must be one of GET POST",
		},
		{
			name:    "url",
			cmd:     "curl not-a-url",
			srcName: "X",
			paths:   samplePaths(),
			want:    "base_url must be a valid URL",
		},
		{
			name:    "name",
			cmd:     "curl https://x.test",
			srcName: "  ",
			paths:   samplePaths(),
			want:    "name is required",
		},
		{
			name:    "paths",
			cmd:     "curl https://x.test",
			srcName: "X",
			paths:   Paths{PaginationKey: "page"},
			want:    "response_json_path is required",
		},
		{
			name:    "raw body",
			cmd:     "curl https://x.test -X POST -d 'a=b'",
			srcName: "X",
			paths:   samplePaths(),
			want:    "body must be a JSON object, got raw text",
		},
		{
			name:    "array body",
			cmd:     "curl https://x.test -X POST -d '[1,2]'",
			srcName: "X",
			paths:   samplePaths(),
			want:    "body must be a JSON object, got array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRequest(tt.srcName, mustParse(t, tt.cmd), tt.paths)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if errdef.CodeOf(err) != errdef.CodeValidation {
				t.Fatalf("expected validation code, got %q", errdef.CodeOf(err))
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}

	if _, err := FromRequest("X", nil, samplePaths()); err == nil {
		t.Fatalf("expected error for nil request")
	}
}

func TestPreviewResponse(t *testing.T) {
	src, err := FromRequest("Acme", mustParse(t, "curl https://acme.test/jobs"), samplePaths())
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	src.JobLinkTemplate = "https://acme.test{job_path}"
	src.JobDetailsJSONPath = "summary"

	resp := []byte(`{"jobPostings":[
		{"id":"1","title":"Go Engineer","externalPath":"/job/1","summary":"` + strings.Repeat("x", 120) + `"},
		{"id":"2","title":"SRE","externalPath":"/job/2"},
		{"id":"3","title":"QA","externalPath":"/job/3"},
		{"id":"4","title":"PM","externalPath":"/job/4"}
	]}`)
	got, err := src.PreviewResponse(resp)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !got.Valid || got.ExtractedJobs != 4 || len(got.SampleData) != 3 {
		t.Fatalf("unexpected preview %+v", got)
	}
	first := got.SampleData[0]
	if first.JobID != "1" || first.JobTitle != "Go Engineer" {
		t.Fatalf("unexpected sample %+v", first)
	}
	if first.JobLink != "https://acme.test/job/1" {
		t.Fatalf("unexpected link %q", first.JobLink)
	}
	if len(first.JobDetails) != previewDetailsMax+3 || !strings.HasSuffix(first.JobDetails, "...") {
		t.Fatalf("expected truncated details, got %q", first.JobDetails)
	}
}

func TestPreviewResponseProblems(t *testing.T) {
	src := Source{Paths: samplePaths()}

	if _, err := src.PreviewResponse([]byte("{nope")); err == nil {
		t.Fatalf("expected error for invalid json")
	}

	got, err := src.PreviewResponse([]byte(`{"other":[]}`))
	if err != nil || got.Valid || !strings.Contains(got.ErrorDetails, "does not exist") {
		t.Fatalf("expected missing path preview, got %+v (%v)", got, err)
	}

	got, err = src.PreviewResponse([]byte(`{"jobPostings":{"id":1}}`))
	if err != nil || got.Valid || !strings.Contains(got.ErrorDetails, "is not an array") {
		t.Fatalf("expected not-array preview, got %+v (%v)", got, err)
	}

	got, err = src.PreviewResponse([]byte(`{"jobPostings":[]}`))
	if err != nil || !got.Valid || got.ExtractedJobs != 0 {
		t.Fatalf("expected empty valid preview, got %+v (%v)", got, err)
	}
}
