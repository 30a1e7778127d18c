// Package session mantiene el registro en memoria de sesiones autenticadas:
// creacion al hacer login, validacion con expiracion deslizante, invalidacion
// y barrido periodico de entradas vencidas.
//
// La tabla vive solo dentro del proceso. Un reinicio invalida todas las
// sesiones; no existe persistencia externa.
package session
