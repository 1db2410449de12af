package capability

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	appschema "github.com/reglet-dev/capkit/application/schema"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/schema"
	"github.com/reglet-dev/capkit/runctx"
)

// Service is embedded in service structs to mark them for RegisterService.
// Tag format: `prefix:"db"` prefixes every function name with "db.".
type Service struct{}

// Fn is a field type for declaring functions.
// Tag format: `desc:"Function description" method:"MethodName" name:"function_name"`.
// Without a name tag the function is named after the field in snake_case.
//
// The method has one of two shapes:
//
//	func(rc *runctx.RunContext, in *T) (any, error)
//	func(rc *runctx.RunContext, params schema.Values) (*entities.StepResult, error)
//
// For the first, the parameter schema is derived from T and params are bound
// into a fresh T per call. For the second, a `params:"MethodName"` tag names a
// method returning the *schema.Schema; without it the function takes no parameters.
type Fn struct{}

var (
	rcType      = reflect.TypeOf((*runctx.RunContext)(nil))
	valuesType  = reflect.TypeOf(schema.Values(nil))
	resultType  = reflect.TypeOf((*entities.StepResult)(nil))
	schemaType  = reflect.TypeOf((*schema.Schema)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
	serviceType = reflect.TypeOf(Service{})
	fnType      = reflect.TypeOf(Fn{})
)

// MustRegisterService registers a service or panics.
// Use this in init() functions.
func MustRegisterService(def *Definition, svc any) {
	if err := RegisterService(def, svc); err != nil {
		panic(fmt.Sprintf("failed to register service: %v", err))
	}
}

// RegisterService registers every Fn declared by svc, a pointer to a struct
// embedding Service, as a function of def.
func RegisterService(def *Definition, svc any) error {
	svcType := reflect.TypeOf(svc)
	svcValue := reflect.ValueOf(svc)

	if svcType == nil || svcType.Kind() != reflect.Pointer || svcType.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("service must be a pointer to struct, got %T", svc)
	}
	structType := svcType.Elem()

	prefix, err := extractServicePrefix(structType)
	if err != nil {
		return err
	}

	fns, err := extractFunctions(structType)
	if err != nil {
		return err
	}

	for _, fn := range fns {
		name := fn.name
		if prefix != "" {
			name = prefix + "." + name
		}

		method := svcValue.MethodByName(fn.methodName)
		if !method.IsValid() {
			return fmt.Errorf("service %s: no method %s for function %s (field %s)",
				structType.Name(), fn.methodName, name, fn.fieldName)
		}

		params, handler, err := wrapMethod(svcValue, method, fn.paramsMethod)
		if err != nil {
			return fmt.Errorf("service %s, function %s: %w", structType.Name(), name, err)
		}

		if err := def.Handle(name, fn.description, params, handler); err != nil {
			return err
		}
	}
	return nil
}

func extractServicePrefix(t reflect.Type) (string, error) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type == serviceType {
			return field.Tag.Get("prefix"), nil
		}
	}
	return "", fmt.Errorf("struct must embed capability.Service")
}

// fnInfo holds function metadata extracted from struct fields.
type fnInfo struct {
	fieldName    string
	methodName   string
	paramsMethod string
	name         string
	description  string
}

func extractFunctions(t reflect.Type) ([]fnInfo, error) {
	var fns []fnInfo
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type != fnType {
			continue
		}
		methodName := field.Tag.Get("method")
		if methodName == "" {
			// Go forbids a field and method sharing a name, so this only
			// resolves when the tag is omitted deliberately.
			methodName = field.Name
		}
		name := field.Tag.Get("name")
		if name == "" {
			name = toSnakeCase(field.Name)
		}
		fns = append(fns, fnInfo{
			fieldName:    field.Name,
			methodName:   methodName,
			paramsMethod: field.Tag.Get("params"),
			name:         name,
			description:  field.Tag.Get("desc"),
		})
	}
	if len(fns) == 0 {
		return nil, fmt.Errorf("service has no functions (no Fn fields)")
	}
	return fns, nil
}

func wrapMethod(svc, method reflect.Value, paramsMethod string) (*schema.Schema, HandlerFunc, error) {
	mt := method.Type()
	if mt.NumIn() != 2 || mt.NumOut() != 2 {
		return nil, nil, fmt.Errorf("method must take (*runctx.RunContext, params) and return (result, error)")
	}
	if mt.In(0) != rcType {
		return nil, nil, fmt.Errorf("first parameter must be *runctx.RunContext")
	}
	if !mt.Out(1).Implements(errorType) {
		return nil, nil, fmt.Errorf("second return value must be error")
	}

	if mt.In(1) == valuesType {
		return wrapValuesMethod(svc, method, paramsMethod)
	}
	return wrapTypedMethod(method)
}

func wrapValuesMethod(svc, method reflect.Value, paramsMethod string) (*schema.Schema, HandlerFunc, error) {
	if method.Type().Out(0) != resultType {
		return nil, nil, fmt.Errorf("first return value must be *entities.StepResult")
	}

	params := schema.Empty()
	if paramsMethod != "" {
		pm := svc.MethodByName(paramsMethod)
		if !pm.IsValid() || pm.Type().NumIn() != 0 || pm.Type().NumOut() != 1 || pm.Type().Out(0) != schemaType {
			return nil, nil, fmt.Errorf("params method %s must have signature func() *schema.Schema", paramsMethod)
		}
		if s, _ := pm.Call(nil)[0].Interface().(*schema.Schema); s != nil {
			params = s
		}
	}

	handler := func(rc *runctx.RunContext, values schema.Values) (*entities.StepResult, error) {
		out := method.Call([]reflect.Value{reflect.ValueOf(rc), reflect.ValueOf(values)})
		var result *entities.StepResult
		if !out[0].IsNil() {
			result = out[0].Interface().(*entities.StepResult)
		}
		return result, errorOf(out[1])
	}
	return params, handler, nil
}

func wrapTypedMethod(method reflect.Value) (*schema.Schema, HandlerFunc, error) {
	mt := method.Type()
	in := mt.In(1)
	if in.Kind() != reflect.Pointer || in.Elem().Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("second parameter must be schema.Values or a pointer to struct, got %s", in)
	}
	if mt.Out(0) != anyType && mt.Out(0) != resultType {
		return nil, nil, fmt.Errorf("first return value must be any or *entities.StepResult")
	}

	params, err := appschema.FromStruct(reflect.New(in.Elem()).Interface())
	if err != nil {
		return nil, nil, err
	}

	handler := func(rc *runctx.RunContext, values schema.Values) (*entities.StepResult, error) {
		target := reflect.New(in.Elem())
		if err := Bind(values, target.Interface()); err != nil {
			return nil, err
		}
		out := method.Call([]reflect.Value{reflect.ValueOf(rc), target})
		if err := errorOf(out[1]); err != nil {
			return nil, err
		}
		if r, ok := out[0].Interface().(*entities.StepResult); ok {
			return r, nil
		}
		return entities.Success(out[0].Interface()), nil
	}
	return params, handler, nil
}

func errorOf(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

// toSnakeCase converts PascalCase to snake_case.
var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
