package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/walrus-x402/x402/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("ethaddr", validateEthAddress)
}

// AuthorizeRequest is the body of POST /api/content/{id}/authorize.
type AuthorizeRequest struct {
	CreatorAddress string `json:"creatorAddress,omitempty" validate:"omitempty,ethaddr"`
	UserWallet     string `json:"userWallet,omitempty" validate:"omitempty,ethaddr"`
}

// ParseAuthorizeRequest decodes and validates an authorize body. An empty
// body is accepted as an empty request.
func ParseAuthorizeRequest(r io.Reader) (*AuthorizeRequest, error) {
	var req AuthorizeRequest

	if err := json.NewDecoder(r).Decode(&req); err != nil && err != io.EOF {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidInput,
			Message: "Invalid JSON body",
			Err:     err,
		}
	}

	if err := validate.Struct(&req); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidInput,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}

	return &req, nil
}

func validateEthAddress(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return IsAddress(fl.Field().String())
}
