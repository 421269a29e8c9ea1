// Package jobsource turns parsed curl requests into generic job-board scrape
// sources.
package jobsource

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/unkn0wn-root/curlparse/internal/curl"
	"github.com/unkn0wn-root/curlparse/internal/errdef"
)

const CareerSiteGeneric = "generic"

// Paths holds the JSON paths used to pull job fields out of an API response.
type Paths struct {
	PaginationKey      string `json:"pagination_key"        validate:"required"`
	ResponseJSONPath   string `json:"response_json_path"    validate:"required"`
	JobIDJSONPath      string `json:"job_id_json_path"      validate:"required"`
	JobTitleJSONPath   string `json:"job_title_json_path"   validate:"required"`
	JobDetailsJSONPath string `json:"job_details_json_path"`
	JobLinkJSONPath    string `json:"job_link_json_path"    validate:"required"`
	JobLinkTemplate    string `json:"job_link_template"`
	JobDateJSONPath    string `json:"job_date_json_path"`
}

type Source struct {
	Name           string            `json:"name"             validate:"required"`
	BaseURL        string            `json:"base_url"         validate:"required,url"`
	Method         string            `json:"method"           validate:"required,oneof=GET POST"`
	Headers        map[string]string `json:"headers"`
	Body           map[string]any    `json:"body,omitempty"`
	QueryParams    string            `json:"query_params"`
	CareerSiteType string            `json:"career_site_type"`
	Paths
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return jsonName(f.Tag.Get("json"))
		})
	})
	return validate
}

// FromRequest maps req onto a validated Source. Non-object JSON bodies and raw
// text bodies are rejected because the scraper merges pagination into them.
func FromRequest(name string, req *curl.Request, paths Paths) (Source, error) {
	if req == nil {
		return Source{}, errdef.New(errdef.CodeValidation, "request is nil")
	}

	src := Source{
		Name:           strings.TrimSpace(name),
		BaseURL:        req.URL,
		Method:         strings.ToUpper(req.Method),
		Headers:        copyHeaders(req.Headers),
		QueryParams:    req.QueryParams,
		CareerSiteType: CareerSiteGeneric,
		Paths:          trimPaths(paths),
	}

	if req.HasBody {
		body, ok := req.Body.(map[string]any)
		if !ok {
			return Source{}, errdef.New(
				errdef.CodeValidation,
				"body must be a JSON object, got %s",
				describe(req.Body),
			)
		}
		src.Body = body
	}

	if err := src.Validate(); err != nil {
		return Source{}, err
	}
	return src, nil
}

func (s Source) Validate() error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errdef.Wrap(errdef.CodeValidation, err, "validate source")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errdef.New(errdef.CodeValidation, "invalid source: %s", strings.Join(msgs, "; "))
}

// Row is the flat form the job board stores for a generic source.
type Row struct {
	RequestURL  string `json:"request_url"`
	HeadersJSON string `json:"headers_json"`
	BodyJSON    string `json:"body_json"`
}

func (s Source) Row() (Row, error) {
	headers, err := s.HeadersJSON()
	if err != nil {
		return Row{}, err
	}
	body, err := s.BodyJSON()
	if err != nil {
		return Row{}, err
	}
	return Row{RequestURL: s.RequestURL(), HeadersJSON: headers, BodyJSON: body}, nil
}

// RequestURL joins the base URL and query string the way the scraper does.
func (s Source) RequestURL() string {
	if s.QueryParams == "" {
		return s.BaseURL
	}
	return s.BaseURL + "?" + s.QueryParams
}

// HeadersJSON is the stored string form of the headers, "{}" when empty.
func (s Source) HeadersJSON() (string, error) {
	headers := s.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeValidation, err, "encode headers")
	}
	return string(data), nil
}

// BodyJSON is the stored string form of the body, empty when there is none.
func (s Source) BodyJSON() (string, error) {
	if len(s.Body) == 0 {
		return "", nil
	}
	data, err := json.Marshal(s.Body)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeValidation, err, "encode body")
	}
	return string(data), nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func trimPaths(p Paths) Paths {
	p.PaginationKey = strings.TrimSpace(p.PaginationKey)
	p.ResponseJSONPath = strings.TrimSpace(p.ResponseJSONPath)
	p.JobIDJSONPath = strings.TrimSpace(p.JobIDJSONPath)
	p.JobTitleJSONPath = strings.TrimSpace(p.JobTitleJSONPath)
	p.JobDetailsJSONPath = strings.TrimSpace(p.JobDetailsJSONPath)
	p.JobLinkJSONPath = strings.TrimSpace(p.JobLinkJSONPath)
	p.JobLinkTemplate = strings.TrimSpace(p.JobLinkTemplate)
	p.JobDateJSONPath = strings.TrimSpace(p.JobDateJSONPath)
	return p
}

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "raw text"
	case []any:
		return "array"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func jsonName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}
