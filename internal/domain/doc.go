// Package domain contains the core business entities, value objects, and
// domain logic of the deck generation service. Generation requests, extracted
// documents, generated cards and decks, user profiles and the error kind
// taxonomy live here, independent of any infrastructure or delivery mechanism.
package domain
