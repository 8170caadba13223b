/*
Copyright 2026 The gemlib Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package status defines the Gemini response status codes and their
// classification into input, success, redirect, temporary failure,
// permanent failure and client certificate groups.
package status

// Status is a two-digit Gemini response status code.
type Status int

const (
	Input          Status = 10
	SensitiveInput Status = 11

	OK Status = 20

	RedirectTemporary Status = 30
	RedirectPermanent Status = 31

	TemporaryFailure   Status = 40
	ServerUnavailable  Status = 41
	CGIError           Status = 42
	ProxyError         Status = 43
	SlowDown           Status = 44

	PermanentFailure  Status = 50
	NotFound          Status = 51
	Gone              Status = 52
	ProxyRefused      Status = 53
	MalformedRequest  Status = 59

	ClientCertificateRequired      Status = 60
	ClientCertificateNotAuthorized Status = 61
	ClientCertificateNotValid      Status = 62

	// GenericError is returned by Parse for any code that does not fall
	// into a recognized class, so callers always get a meaningful Class
	// even for a status the protocol has not yet defined.
	GenericError Status = 40
)

// Class partitions status codes by their leading digit.
type Class int

const (
	ClassUnknown Class = iota
	ClassInput
	ClassSuccess
	ClassRedirect
	ClassTemporaryFailure
	ClassPermanentFailure
	ClassClientCertificate
)

// Parse converts a wire status code into a Status. A code whose leading
// digit names a class (10-69) keeps its numeric value, so Code returns
// what was on the wire; any other code maps to GenericError, whose Code
// is 40.
func Parse(code int) Status {
	if code < 10 || code > 69 {
		return GenericError
	}
	return Status(code)
}

// Code returns the numeric status code for wire transmission.
func (s Status) Code() int {
	return int(s)
}

// Class classifies s by its leading digit.
func (s Status) Class() Class {
	switch int(s) / 10 {
	case 1:
		return ClassInput
	case 2:
		return ClassSuccess
	case 3:
		return ClassRedirect
	case 4:
		return ClassTemporaryFailure
	case 5:
		return ClassPermanentFailure
	case 6:
		return ClassClientCertificate
	default:
		return ClassUnknown
	}
}

// IsRedirect reports whether s is a 30 or 31 redirect.
func (s Status) IsRedirect() bool {
	return s == RedirectTemporary || s == RedirectPermanent
}

// IsSuccess reports whether s is the single 2x status.
func (s Status) IsSuccess() bool {
	return s.Class() == ClassSuccess
}

// HasBody reports whether a response with this status carries a body on
// the wire. Only 20 does.
func (s Status) HasBody() bool {
	return s == OK
}

func (c Class) String() string {
	switch c {
	case ClassInput:
		return "input"
	case ClassSuccess:
		return "success"
	case ClassRedirect:
		return "redirect"
	case ClassTemporaryFailure:
		return "temporary failure"
	case ClassPermanentFailure:
		return "permanent failure"
	case ClassClientCertificate:
		return "client certificate"
	default:
		return "unknown"
	}
}

func (s Status) String() string {
	switch s {
	case Input:
		return "10 INPUT"
	case SensitiveInput:
		return "11 SENSITIVE INPUT"
	case OK:
		return "20 SUCCESS"
	case RedirectTemporary:
		return "30 REDIRECT TEMPORARY"
	case RedirectPermanent:
		return "31 REDIRECT PERMANENT"
	case ServerUnavailable:
		return "41 SERVER UNAVAILABLE"
	case CGIError:
		return "42 CGI ERROR"
	case ProxyError:
		return "43 PROXY ERROR"
	case SlowDown:
		return "44 SLOW DOWN"
	case PermanentFailure:
		return "50 PERMANENT FAILURE"
	case NotFound:
		return "51 NOT FOUND"
	case Gone:
		return "52 GONE"
	case ProxyRefused:
		return "53 PROXY REQUEST REFUSED"
	case MalformedRequest:
		return "59 BAD REQUEST"
	case ClientCertificateRequired:
		return "60 CLIENT CERTIFICATE REQUIRED"
	case ClientCertificateNotAuthorized:
		return "61 CERTIFICATE NOT AUTHORIZED"
	case ClientCertificateNotValid:
		return "62 CERTIFICATE NOT VALID"
	default:
		return "40 TEMPORARY FAILURE"
	}
}
