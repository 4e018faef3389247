package tsp

import (
	"errors"
)

var (
	errUnexpectedRequest  = errors.New("unexpected request structure")
	errUnexpectedResponse = errors.New("unexpected response structure")
)

func ValidateRequest(req *Packet) error {
	if req.Version != Version {
		return errUnexpectedRequest
	}
	if req.Type != TypeRequest {
		return errUnexpectedRequest
	}
	return nil
}

func ValidateResponse(resp *Packet, nonce uint32) error {
	if resp.Version != Version {
		return errUnexpectedResponse
	}
	if resp.Type != TypeResponse {
		return errUnexpectedResponse
	}
	if resp.Nonce != nonce {
		return errUnexpectedResponse
	}
	if int64(resp.TimeUsec) >= microsecondsPerSecond {
		return errUnexpectedResponse
	}
	return nil
}
