// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"flag"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	err := en_translations.RegisterDefaultTranslations(validate, translator)
	if err != nil {
		panic(err)
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("flag"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

type config struct {
	Host      string        `flag:"host" validate:"required,hostname_rfc1123|ip"`
	Service   string        `flag:"service" validate:"required"`
	Method    string        `flag:"method" validate:"required,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS"`
	Target    string        `flag:"target" validate:"required,startswith=/"`
	Body      string        `flag:"body"`
	KeepAlive bool          `flag:"keep-alive"`
	Count     int           `flag:"count" validate:"min=1,max=100"`
	Retries   int           `flag:"retries" validate:"gte=0,lte=10"`
	Timeout   time.Duration `flag:"timeout" validate:"gte=0"`
	Verbose   bool          `flag:"v"`
}

func parseConfig(name string, args []string) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", "", "server host name or address")
	fs.StringVar(&cfg.Service, "service", "http", "server port number or service name")
	fs.StringVar(&cfg.Method, "method", "GET", "request method")
	fs.StringVar(&cfg.Target, "target", "/", "request target")
	fs.StringVar(&cfg.Body, "body", "", "request body")
	fs.BoolVar(&cfg.KeepAlive, "keep-alive", false, "ask the server to keep the connection alive")
	fs.IntVar(&cfg.Count, "count", 1, "number of times to send the request")
	fs.IntVar(&cfg.Retries, "retries", 0, "number of times to retry a refused connection")
	fs.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "inactivity timeout, zero for none")
	fs.BoolVar(&cfg.Verbose, "v", false, "log debug messages")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *config) error {
	if err := validate.Struct(cfg); err != nil {
		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		var fields fieldErrors
		for _, verror := range verrors {
			fields = append(fields, fieldError{
				Field: verror.Field(),
				Err:   customErrForTag(verror.Tag(), verror),
			})
		}
		return fields
	}

	return nil
}

type fieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// fieldErrors represents a collection of flag errors.
type fieldErrors []fieldError

// Error implements the error interface.
func (fe fieldErrors) Error() string {
	d, err := json.Marshal(fe)
	if err != nil {
		return err.Error()
	}
	return string(d)
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This flag is required"
	default:
		return verror.Translate(translator)
	}
}
