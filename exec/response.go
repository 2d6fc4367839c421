package exec

import (
	"time"

	"github.com/surdb/surdb-engine/value"
)

// Response is one statement's outcome in a Query's result array (§4.8).
type Response struct {
	SQL    string        // original statement text, only set if Options.Debug
	Time   time.Duration // wall time spent executing this statement
	Status string        // "OK" or "ERR"
	Result value.Value   // zero value if Status is "ERR"
	Detail string        // error message if Status is "ERR"
}

func ok(sql string, d time.Duration, v value.Value) Response {
	return Response{SQL: sql, Time: d, Status: "OK", Result: v}
}

func errResp(sql string, d time.Duration, err error) Response {
	return Response{SQL: sql, Time: d, Status: "ERR", Detail: err.Error()}
}
