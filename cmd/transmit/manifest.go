package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"transmit/internal/api"
)

// readManifest loads a transmittal definition such as:
//
//	title: Issue for construction
//	message: Rev C drawings attached.
//	documents:
//	  - urn: urn:transmit:doc:...
//	    version: v3
//	recipients:
//	  - email: gc@example.com
//	    name: General Contractor
func readManifest(path string) (api.TransmittalCreateRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.TransmittalCreateRequest{}, err
	}
	req, err := parseManifest(data)
	if err != nil {
		return req, fmt.Errorf("manifest %s: %w", path, err)
	}
	return req, nil
}

func parseManifest(data []byte) (api.TransmittalCreateRequest, error) {
	var req api.TransmittalCreateRequest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, errors.New("manifest is empty")
		}
		return req, err
	}
	return req, nil
}
