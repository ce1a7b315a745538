// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package alwin defines the wire format of the Alwin access-control web
// service and the parsed event records the sync engine consumes.
//
// The upstream returns loosely structured WCF-era JSON; every payload is
// modeled here as a closed struct and validated at the parsing boundary.
// Malformed records are skipped, never propagated.
package alwin

import (
	"regexp"
	"strconv"
	"time"
)

// LogAccess mirrors one record of the getlogaccess response.
type LogAccess struct {
	Type             string `json:"__type"`
	AccessID         int64  `json:"AccessID"`
	AlarmCode        string `json:"AlarmCode"`
	AlarmCodeMessage string `json:"AlarmCodeMessage"`
	CompanyName      string `json:"CompanyName"`
	DateTime1        string `json:"DateTime1"`
	DateTime2        string `json:"DateTime2"`
	DepartementName  string `json:"DepartementName"`
	DeviceName       string `json:"DeviceName"`
	FirstName        string `json:"FirstName"`
	IdentifierInfo   string `json:"IdentifierInfo"`
	IdentifierName   string `json:"IdentifierName"`
	LastName         string `json:"LastName"`
	Matricule        string `json:"Matricule"`
	PointName        string `json:"PointName"`
	ServiceName      string `json:"ServiceName"`
	SupervisorCode   string `json:"SupervisorCode"`
}

// LogAlarm mirrors one record of the getlogalarm response.
type LogAlarm struct {
	Type             string `json:"__type"`
	AlarmID          int64  `json:"AlarmID"`
	AlarmCode        string `json:"AlarmCode"`
	AlarmCodeMessage string `json:"AlarmCodeMessage"`
	DateTime1        string `json:"DateTime1"`
	DateTime2        string `json:"DateTime2"`
	DateTime3        string `json:"DateTime3"`
	DateTime4        string `json:"DateTime4"`
	DeviceName       string `json:"DeviceName"`
	PointName        string `json:"PointName"`
	SupervisorCode   string `json:"SupervisorCode"`
}

// OperationResult carries the upstream's own status envelope. A Status
// other than "OK" marks the whole response as failed even on HTTP 200.
type OperationResult struct {
	Status        string  `json:"Status"`
	Message       *string `json:"Message"`
	SystemMessage *string `json:"SystemMessage"`
	StackTrace    *string `json:"StackTrace"`
}

// AccessLogResponse is the getlogaccess envelope. Records arrive in
// CollectionsContainer grouped per page, most-recent-first.
type AccessLogResponse struct {
	CollectionsContainer [][]LogAccess   `json:"CollectionsContainer"`
	PageNumber           int             `json:"PageNumber"`
	PageSize             int             `json:"PageSize"`
	ProcessingTime       string          `json:"ProcessingTime"`
	TotalNumber          int             `json:"TotalNumber"`
	TotalNumberRequest   int             `json:"TotalNumberRequest"`
	Success              bool            `json:"success"`
	OperationResult      OperationResult `json:"OperationResult"`
}

// AlarmLogResponse is the getlogalarm envelope.
type AlarmLogResponse struct {
	CollectionsContainer [][]LogAlarm    `json:"CollectionsContainer"`
	PageNumber           int             `json:"PageNumber"`
	PageSize             int             `json:"PageSize"`
	ProcessingTime       string          `json:"ProcessingTime"`
	TotalNumber          int             `json:"TotalNumber"`
	TotalNumberRequest   int             `json:"TotalNumberRequest"`
	Success              bool            `json:"success"`
	OperationResult      OperationResult `json:"OperationResult"`
}

// UnknownCompany is the company name recorded when a badge event carries
// no company information.
const UnknownCompany = "Unknown"

// AccessEvent is one observed badge/door transition, immutable once
// parsed. OccurredAt is nil when the vendor date string is unparseable;
// such events are dropped by the watermark filter.
type AccessEvent struct {
	PointName      string
	MessageCode    string
	OccurredAt     *time.Time
	IdentifierInfo string
	FirstName      string
	LastName       string
	ServiceName    string
	CompanyName    string
	DeviceName     string
	AlarmCode      string
}

// AlarmEvent is one observed alarm notification.
type AlarmEvent struct {
	PointName   string
	MessageCode string
	OccurredAt  *time.Time
	AlarmID     int64
	AlarmCode   string
	DeviceName  string
}

// dotNetDateRe extracts the epoch milliseconds from the WCF date encoding
// "/Date(1719830400000+0200)/". The zone offset is informational; the
// embedded value is already UTC milliseconds.
var dotNetDateRe = regexp.MustCompile(`/Date\((-?\d+)([+-]\d{4})?\)/`)

// ParseDotNetDate parses the vendor date encoding into an absolute
// timestamp. Returns nil when the string does not match.
func ParseDotNetDate(s string) *time.Time {
	m := dotNetDateRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}

// ParseAccessEvent converts a raw access log record into an AccessEvent,
// applying the company-name default.
func ParseAccessEvent(log *LogAccess) AccessEvent {
	company := log.CompanyName
	if company == "" {
		company = UnknownCompany
	}
	return AccessEvent{
		PointName:      log.PointName,
		MessageCode:    log.AlarmCodeMessage,
		OccurredAt:     ParseDotNetDate(log.DateTime1),
		IdentifierInfo: log.IdentifierInfo,
		FirstName:      log.FirstName,
		LastName:       log.LastName,
		ServiceName:    log.ServiceName,
		CompanyName:    company,
		DeviceName:     log.DeviceName,
		AlarmCode:      log.AlarmCode,
	}
}

// ParseAlarmEvent converts a raw alarm log record into an AlarmEvent.
func ParseAlarmEvent(log *LogAlarm) AlarmEvent {
	return AlarmEvent{
		PointName:   log.PointName,
		MessageCode: log.AlarmCodeMessage,
		OccurredAt:  ParseDotNetDate(log.DateTime1),
		AlarmID:     log.AlarmID,
		AlarmCode:   log.AlarmCode,
		DeviceName:  log.DeviceName,
	}
}

// Records flattens the page-grouped CollectionsContainer of an access log
// response into a single slice, preserving upstream order.
func (r *AccessLogResponse) Records() []LogAccess {
	var out []LogAccess
	for _, group := range r.CollectionsContainer {
		out = append(out, group...)
	}
	return out
}

// Records flattens the page-grouped CollectionsContainer of an alarm log
// response into a single slice, preserving upstream order.
func (r *AlarmLogResponse) Records() []LogAlarm {
	var out []LogAlarm
	for _, group := range r.CollectionsContainer {
		out = append(out, group...)
	}
	return out
}
