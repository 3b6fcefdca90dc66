// Package email envía los correos transaccionales de la plataforma
// (verificación de email) por SMTP.
//
//	UsersService ──► Mailer.SendVerification ──► Sender (SMTP | log)
package email
