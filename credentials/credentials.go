/*
 *
 * Copyright 2014 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package credentials defines the interfaces a concrete transport uses
// to authenticate a connection. Per spec §1 ("TLS setup, credential
// material, and socket bootstrap" are external collaborators), this
// core treats credentials as an interface-only seam: CallHdr.Creds and
// transport.ConnectOptions/ServerConfig reference these types, but no
// concrete TLS handshake is implemented here.
package credentials

import (
	"context"
	"net"
)

// PerRPCCredentials defines the common interface for credentials which
// attach security information to every RPC (e.g. oauth2 tokens).
type PerRPCCredentials interface {
	// GetRequestMetadata gets the current request metadata, refreshing
	// tokens if required. uri is the URI of the request's entry point.
	GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error)
	// RequireTransportSecurity indicates whether these credentials
	// require transport security (e.g. TLS) to be safe to send.
	RequireTransportSecurity() bool
}

// ProtocolInfo describes the wire protocol, security protocol, and
// server name in use for a transport.
type ProtocolInfo struct {
	ProtocolVersion  string
	SecurityProtocol string
	SecurityVersion  string
	ServerName       string
}

// AuthInfo defines the common interface for the auth information
// callers are interested in.
type AuthInfo interface {
	AuthType() string
}

// TransportCredentials defines the common interface for all live wire
// protocols and supported transport security protocols (TLS, mTLS,
// ALTS, ...). This core never implements ClientHandshake/ServerHandshake
// itself; a concrete transport (outside this core's scope) supplies it.
type TransportCredentials interface {
	// ClientHandshake does the authentication handshake on rawConn for
	// clients, returning the authenticated connection and its auth
	// info.
	ClientHandshake(ctx context.Context, authority string, rawConn net.Conn) (net.Conn, AuthInfo, error)
	// ServerHandshake does the authentication handshake for servers.
	ServerHandshake(rawConn net.Conn) (net.Conn, AuthInfo, error)
	// Info returns the ProtocolInfo of this TransportCredentials.
	Info() ProtocolInfo
	// Clone makes a copy of this TransportCredentials.
	Clone() TransportCredentials
	// OverrideServerName overrides the server name used to verify the
	// hostname on the certificates returned by the server. Must be
	// called before dialing.
	OverrideServerName(string) error
}

// insecureCredentials is a no-op TransportCredentials, useful for the
// in-memory pipe transport and for tests that don't exercise real
// transport security.
type insecureCredentials struct{}

// NewInsecure returns a TransportCredentials that performs no
// handshake; ClientHandshake/ServerHandshake return rawConn unchanged
// with nil AuthInfo.
func NewInsecure() TransportCredentials { return insecureCredentials{} }

func (insecureCredentials) ClientHandshake(_ context.Context, _ string, rawConn net.Conn) (net.Conn, AuthInfo, error) {
	return rawConn, nil, nil
}

func (insecureCredentials) ServerHandshake(rawConn net.Conn) (net.Conn, AuthInfo, error) {
	return rawConn, nil, nil
}

func (insecureCredentials) Info() ProtocolInfo { return ProtocolInfo{SecurityProtocol: "insecure"} }

func (insecureCredentials) Clone() TransportCredentials { return insecureCredentials{} }

func (insecureCredentials) OverrideServerName(string) error { return nil }
