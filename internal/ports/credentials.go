package ports

import "context"

// CredentialProvider entrega las credenciales que pide el handshake del
// stream. La emisión de sesiones vive en un servicio remoto del exchange;
// aquí solo se consume.
type CredentialProvider interface {
	// AppKey devuelve la application key del operador.
	AppKey() string

	// SessionToken devuelve un token de sesión vigente, renovándolo
	// contra el identity service si hace falta. Se llama en cada
	// (re)conexión: el token puede haber expirado entre reintentos.
	SessionToken(ctx context.Context) (string, error)
}
