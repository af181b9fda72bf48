package ssh

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// PasswordConfig delivers a server configuration accepting a single user name and password,
// with a freshly generated host key.
func PasswordConfig(uname, password string) (*ssh.ServerConfig, error) {
	hostKey, err := GenerateHostKey()
	if err != nil {
		return nil, err
	}
	return PasswordConfigWithHostKey(uname, password, hostKey), nil
}

// PasswordConfigWithHostKey is PasswordConfig with a caller supplied host key.
func PasswordConfigWithHostKey(uname, password string, hostKey ssh.Signer) *ssh.ServerConfig {
	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			return checkCredentials(uname, password, c, pass)
		},
	}
	config.AddHostKey(hostKey)
	return config
}

func checkCredentials(uname, password string, c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
	if c.User() == uname && string(pass) == password {
		return nil, nil
	}
	return nil, fmt.Errorf("password rejected for %q", c.User())
}

// GenerateHostKey delivers a new 2048 bit RSA host key.
func GenerateHostKey() (hostkey ssh.Signer, err error) {
	var key *rsa.PrivateKey
	if key, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
		return
	}
	return ssh.ParsePrivateKey(encodePrivateKeyToPEM(key))
}

func encodePrivateKeyToPEM(privateKey *rsa.PrivateKey) []byte {
	privBlock := pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}
	return pem.EncodeToMemory(&privBlock)
}
