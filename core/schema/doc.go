/*
Package schema parses channel manifests: the normalized description of the
channels to generate bindings for.

A manifest is produced from an API description by an upstream tool or written
by hand. It lists channels with their address template, parameters and
message types:

	package: events

	channels:
	  - id: userSignedUp
	    address: user.{userId}.signedup
	    protocols: [nats, kafka]
	    parameters:
	      - { name: userId, type: string }
	    messages:
	      - { name: UserSignedUp, validate: true }

	  - id: listOrders
	    address: /users/{userId}/orders
	    protocols: [http_client]
	    parameters:
	      - { name: userId, type: integer }
	      - { name: status, type: array, items: string, style: pipeDelimited }
	      - { name: limit, type: integer, required: true }
	    messages:
	      - { name: OrderQuery }
	    reply:
	      - { name: OrderList }

# Parameters

Parameters take a location (path, query or topic), a style, explode,
allowReserved and required. Omitted values follow the address template:
a name the template does not mention is a query parameter, a name inside a
slash-delimited template is a path parameter and any other is a topic
parameter. OpenAPI 2 collectionFormat is accepted in place of style.

Parameter types are string, integer, number, boolean, array (with items) and
object.

# Messages

Each channel carries one message type or a union of several, told apart by
the discriminator property (default "type"). Message names are the Go types
of the output package; goType overrides the name. A validate flag marks types
that have a Validate method.

Manifests may be YAML or JSON with comments (.json, .jsonc).
*/
package schema
