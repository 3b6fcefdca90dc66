// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente. La implementación concreta vive en
// internal/store/pg.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Toda mutación sobre una entidad indexada escribe su IndexRecord en el
//     outbox dentro de la misma transacción
//   - Errores de dominio están en errors.go
package repository
