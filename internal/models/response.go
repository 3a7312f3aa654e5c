package models

import (
	"net/http"

	"shiftplanner.ebus.dev/internal/clock"
)

const apiVersion = 2

// ResponseModel is the envelope of every JSON API response.
type ResponseModel struct {
	Code        int         `json:"code"`
	CurrentTime int64       `json:"currentTime"`
	Data        interface{} `json:"data,omitempty"`
	Text        string      `json:"text"`
	Version     int         `json:"version"`
}

type EntryData struct {
	Entry interface{} `json:"entry"`
}

type ListData struct {
	List          interface{} `json:"list"`
	LimitExceeded bool        `json:"limitExceeded"`
}

func ResponseCurrentTime(c clock.Clock) int64 {
	if c == nil {
		return clock.RealClock{}.NowUnixMilli()
	}
	return c.NowUnixMilli()
}

func NewOKResponse(data interface{}, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        http.StatusOK,
		CurrentTime: ResponseCurrentTime(c),
		Data:        data,
		Text:        "OK",
		Version:     apiVersion,
	}
}

func NewEntryResponse(entry interface{}, c clock.Clock) ResponseModel {
	return NewOKResponse(EntryData{Entry: entry}, c)
}

func NewListResponse(list interface{}, limitExceeded bool, c clock.Clock) ResponseModel {
	return NewOKResponse(ListData{List: list, LimitExceeded: limitExceeded}, c)
}

// NewErrorResponse builds the envelope for a failed request.
func NewErrorResponse(code int, text string, data interface{}, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(c),
		Data:        data,
		Text:        text,
		Version:     apiVersion,
	}
}
