package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/observer-pro/observer-back/internal/service"
)

// newValidator はJSONのフィールド名でエラーを報告するバリデーターを作成します
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodePayload はペイロードを dst にデコードします。空のペイロードはゼロ値のままです
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &service.ValidationError{Field: typeErr.Field, Msg: "must be " + typeErr.Type.String()}
		}
		return &service.ValidationError{Field: "payload", Msg: "is not valid JSON for this event"}
	}
	return nil
}

// validateRequest は構造体のリクエストを validate タグで検証します
// 構造体以外（steps/all のリストなど）はそのまま通します
func validateRequest(v *validator.Validate, req any) error {
	if reflect.Indirect(reflect.ValueOf(req)).Kind() != reflect.Struct {
		return nil
	}
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &service.ValidationError{Field: fe.Field(), Msg: validationMessage(fe)}
	}
	return &service.ValidationError{Msg: err.Error()}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "url":
		return "must be a valid url"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// parseRoomID はURLパラメータのルームIDを検証して数値に変換します
func parseRoomID(raw string) (int, error) {
	id, err := strconv.Atoi(normalizeID(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid room id %q", raw)
	}
	return id, nil
}
