/*
Package staticserver is a small HTTP/1.1 server for static content and a
couple of diagnostic endpoints.

It serves either a single file (as /<basename>) or a directory tree, keeps
connections alive up to a per-connection request cap, and closes idle
connections after a timeout. Each accepted connection runs in its own
goroutine.

Endpoints

  - GET /              index.html in directory mode, empty 200 otherwise
  - GET /echo/<text>   <text> as text/plain
  - GET /user-agent    the request's User-Agent as text/plain
  - GET /<path>        static content, content type from the extension

Anything other than GET is answered with 405.

Quick Start

    static-server -d ./public -p 4221 -l access.log

Settings can also come from a JSON file (-c) and STATIC_SERVER_*
environment variables; flags win over both.

Modules

  - app: Application lifecycle, signals and graceful shutdown
  - cmd/static-server: Command-line entry point
  - config: Configuration loading and management
  - core: Acceptor engine and per-connection sessions
  - core/http: Request parsing and response serialization
  - core/router: Fixed-priority routing
  - core/middleware: Middleware pipeline
  - core/static: File and directory content resolution
  - core/pools: Buffers, session reuse and the session supervisor
  - core/observability: Logging and request metrics
  - core/codec: Metrics snapshot encoding (JSON, protobuf)
*/
package staticserver
