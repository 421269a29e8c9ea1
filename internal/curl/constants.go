package curl

const (
	cmdCurl    = "curl"
	cmdSudo    = "sudo"
	cmdEnv     = "env"
	cmdCommand = "command"
	cmdTime    = "time"
	cmdNoGlob  = "noglob"
)

var promptPrefixes = []string{"$", "%", ">", "!"}

const (
	methodDefault     = "GET"
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
	errorPrefix       = "Failed to parse curl command: "
)

const (
	warnNoCurl         = "curl keyword not found"
	warnNoURL          = "no URL found in command"
	warnBodyNotJSON    = "body is not valid JSON; kept as raw text"
	warnHeaderDup      = "header %s set more than once; last value kept"
	warnHeaderTruncate = "header %s value truncated at embedded quote"
)
