package i18n

var enUS = map[Code]string{
	CodeUnknown:             "an unexpected error occurred",
	"UNAUTHENTICATED":       "not authenticated",
	"CODE_REJECTED":         "the code was not accepted",
	"FORBIDDEN":             "not allowed",
	"NOT_FOUND":             "not found",
	"CONFLICT":              "the request conflicted with a concurrent change, try again",
	"INVALID_CREDENTIALS":   "invalid credentials",
	"INVALID_PHONE":         "phone number is invalid",
	"INVALID_ARGUMENT":      "invalid request",
	"DELIVERY_FAILED":       "the code could not be delivered, try again",
	"TWO_FACTOR_REQUIRED":   "a two-factor code is required",
	"ALREADY_ENABLED":       "two-factor authentication is already enabled",
	"NOT_ENABLED":           "two-factor authentication is not enabled",
	"NO_PENDING_ENROLLMENT": "no two-factor enrollment is in progress",
}

var esES = map[Code]string{
	CodeUnknown:             "se produjo un error inesperado",
	"UNAUTHENTICATED":       "no autenticado",
	"CODE_REJECTED":         "el código no fue aceptado",
	"FORBIDDEN":             "no permitido",
	"NOT_FOUND":             "no encontrado",
	"CONFLICT":              "la solicitud chocó con un cambio simultáneo, inténtalo de nuevo",
	"INVALID_CREDENTIALS":   "credenciales no válidas",
	"INVALID_PHONE":         "el número de teléfono no es válido",
	"INVALID_ARGUMENT":      "solicitud no válida",
	"DELIVERY_FAILED":       "no se pudo enviar el código, inténtalo de nuevo",
	"TWO_FACTOR_REQUIRED":   "se requiere un código de doble factor",
	"ALREADY_ENABLED":       "la autenticación de doble factor ya está activada",
	"NOT_ENABLED":           "la autenticación de doble factor no está activada",
	"NO_PENDING_ENROLLMENT": "no hay ninguna activación de doble factor en curso",
}
