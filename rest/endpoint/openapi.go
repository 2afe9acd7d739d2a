// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"net/http"
	"strconv"

	"github.com/swaggest/jsonschema-go"
	"github.com/swaggest/openapi-go/openapi3"
)

func schemaOf[T any]() *openapi3.SchemaOrRef {
	var reflector jsonschema.Reflector
	var t T
	jsonSchema, err := reflector.Reflect(t, jsonschema.InlineRefs)
	if err != nil {
		return nil
	}
	var schemaOrRef openapi3.SchemaOrRef
	schemaOrRef.FromJSONSchema(jsonSchema.ToSchemaOrBool())
	return &schemaOrRef
}

func jsonContent(schema *openapi3.SchemaOrRef) map[string]openapi3.MediaType {
	return map[string]openapi3.MediaType{
		"application/json": {Schema: schema},
	}
}

func buildOpenApi[Req, Resp any](op *Operation[Req, Resp]) openapi3.Operation {
	var o openapi3.Operation
	if op.summary != "" {
		summary := op.summary
		o.Summary = &summary
	}

	for _, p := range op.pathParams {
		required := true
		param := &openapi3.Parameter{
			Name:     p.Name,
			In:       openapi3.ParameterInPath,
			Required: &required,
			Schema: &openapi3.SchemaOrRef{
				Schema: (&openapi3.Schema{}).WithType(openapi3.SchemaTypeString),
			},
		}
		if p.Description != "" {
			desc := p.Description
			param.Description = &desc
		}
		o.Parameters = append(o.Parameters, openapi3.ParameterOrRef{Parameter: param})
	}

	if hasBody[Req]() {
		required := true
		o.RequestBody = &openapi3.RequestBodyOrRef{
			RequestBody: &openapi3.RequestBody{
				Required: &required,
				Content:  jsonContent(schemaOf[Req]()),
			},
		}
	}

	resp := openapi3.Response{Description: http.StatusText(op.statusCode)}
	if hasBody[Resp]() {
		resp.Content = jsonContent(schemaOf[Resp]())
	}
	o.Responses.MapOfResponseOrRefValues = map[string]openapi3.ResponseOrRef{
		strconv.Itoa(op.statusCode): {Response: &resp},
	}

	errSchema := schemaOf[ErrorResponse]()
	for _, code := range op.errorCodes {
		o.Responses.MapOfResponseOrRefValues[strconv.Itoa(code)] = openapi3.ResponseOrRef{
			Response: &openapi3.Response{
				Description: http.StatusText(code),
				Content:     jsonContent(errSchema),
			},
		}
	}
	return o
}
