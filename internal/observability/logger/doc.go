// Package logger es el zap del proceso.
//
// cmd/jigcloud llama Init una vez con APP_ENV y LOG_LEVEL. WithLogging guarda
// en el contexto un logger con request_id, method y path, y el extractor de
// credenciales le agrega el principal con Enrich; de ahí para adentro se usa
// From(ctx). Los workers sin request usan Named.
package logger
