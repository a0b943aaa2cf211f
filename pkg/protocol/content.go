package protocol

import (
	"encoding/json"
	"errors"
)

// Content block discriminators
const (
	ContentTypeText         = "text"
	ContentTypeImage        = "image"
	ContentTypeAudio        = "audio"
	ContentTypeResourceLink = "resource_link"
	ContentTypeResource     = "resource"
)

var contentTypes = []string{
	ContentTypeText, ContentTypeImage, ContentTypeAudio,
	ContentTypeResourceLink, ContentTypeResource,
}

// Role identifies the audience of annotated content
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Annotations are optional display hints attached to content
type Annotations struct {
	Meta         Meta     `json:"_meta,omitempty"`
	Audience     []Role   `json:"audience,omitempty"`
	LastModified *string  `json:"lastModified,omitempty"`
	Priority     *float64 `json:"priority,omitempty"`
}

// Validate implements Validatable
func (a *Annotations) Validate(v *Validator) {
	for i, role := range a.Audience {
		v.Field("audience").Index(i).Enum("", string(role), false, string(RoleAssistant), string(RoleUser))
	}
}

// TextContent is plain text
type TextContent struct {
	Meta        Meta         `json:"_meta,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Text        string       `json:"text"`
}

// ImageContent is base64 image data
type ImageContent struct {
	Meta        Meta         `json:"_meta,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Data        string       `json:"data"`
	MimeType    string       `json:"mimeType"`
	URI         *string      `json:"uri,omitempty"`
}

// AudioContent is base64 audio data
type AudioContent struct {
	Meta        Meta         `json:"_meta,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Data        string       `json:"data"`
	MimeType    string       `json:"mimeType"`
}

// ResourceLink references a resource the agent can fetch itself
type ResourceLink struct {
	Meta        Meta         `json:"_meta,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	URI         string       `json:"uri"`
	Name        string       `json:"name"`
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	MimeType    *string      `json:"mimeType,omitempty"`
	Size        *int64       `json:"size,omitempty"`
}

// EmbeddedResource carries resource contents inline
type EmbeddedResource struct {
	Meta        Meta                     `json:"_meta,omitempty"`
	Annotations *Annotations             `json:"annotations,omitempty"`
	Resource    EmbeddedResourceResource `json:"resource"`
}

// TextResourceContents is a text resource body
type TextResourceContents struct {
	Meta     Meta    `json:"_meta,omitempty"`
	URI      string  `json:"uri"`
	Text     string  `json:"text"`
	MimeType *string `json:"mimeType,omitempty"`
}

// BlobResourceContents is a base64 binary resource body
type BlobResourceContents struct {
	Meta     Meta    `json:"_meta,omitempty"`
	URI      string  `json:"uri"`
	Blob     string  `json:"blob"`
	MimeType *string `json:"mimeType,omitempty"`
}

// EmbeddedResourceResource is either text or blob contents. The variant is
// chosen by the presence of the "text" or "blob" key.
type EmbeddedResourceResource struct {
	Text *TextResourceContents
	Blob *BlobResourceContents

	state union
}

// MarshalJSON implements json.Marshaler
func (r EmbeddedResourceResource) MarshalJSON() ([]byte, error) {
	switch {
	case r.Text != nil:
		return json.Marshal(r.Text)
	case r.Blob != nil:
		return json.Marshal(r.Blob)
	default:
		return nil, errors.New("embedded resource has neither text nor blob contents")
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (r *EmbeddedResourceResource) UnmarshalJSON(data []byte) error {
	*r = EmbeddedResourceResource{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		r.state.err = "expected object"
		return nil
	}
	if _, isText := fields["text"]; isText {
		r.Text = &TextResourceContents{}
		r.state.decodeVariant(data, r.Text)
		return nil
	}
	if _, isBlob := fields["blob"]; isBlob {
		r.Blob = &BlobResourceContents{}
		r.state.decodeVariant(data, r.Blob)
		return nil
	}
	r.state.err = `expected "text" or "blob" contents`
	return nil
}

// Validate implements Validatable
func (r *EmbeddedResourceResource) Validate(v *Validator) {
	if r.state.err != "" {
		v.Fail("resource contents", r.state.err)
		return
	}
	switch {
	case r.Text != nil:
		v.RequireString("uri", r.Text.URI)
	case r.Blob != nil:
		v.RequireString("uri", r.Blob.URI)
		v.RequireString("blob", r.Blob.Blob)
	default:
		v.Fail("resource contents", "missing")
	}
}

// ContentBlock is the tagged union of prompt and message content. Exactly
// one variant pointer is set.
type ContentBlock struct {
	Text         *TextContent
	Image        *ImageContent
	Audio        *AudioContent
	ResourceLink *ResourceLink
	Resource     *EmbeddedResource

	state union
}

// TextBlock returns a text content block
func TextBlock(text string) ContentBlock {
	return ContentBlock{Text: &TextContent{Text: text}}
}

// ImageBlock returns an image content block
func ImageBlock(data, mimeType string) ContentBlock {
	return ContentBlock{Image: &ImageContent{Data: data, MimeType: mimeType}}
}

// ResourceLinkBlock returns a resource link content block
func ResourceLinkBlock(name, uri string) ContentBlock {
	return ContentBlock{ResourceLink: &ResourceLink{Name: name, URI: uri}}
}

// Type returns the discriminator of the populated variant
func (c ContentBlock) Type() string {
	switch {
	case c.Text != nil:
		return ContentTypeText
	case c.Image != nil:
		return ContentTypeImage
	case c.Audio != nil:
		return ContentTypeAudio
	case c.ResourceLink != nil:
		return ContentTypeResourceLink
	case c.Resource != nil:
		return ContentTypeResource
	default:
		return c.state.tag
	}
}

func (c ContentBlock) hasVariant() bool {
	return c.Text != nil || c.Image != nil || c.Audio != nil || c.ResourceLink != nil || c.Resource != nil
}

// MarshalJSON implements json.Marshaler
func (c ContentBlock) MarshalJSON() ([]byte, error) {
	switch {
	case c.Text != nil:
		return marshalTagged("type", ContentTypeText, c.Text)
	case c.Image != nil:
		return marshalTagged("type", ContentTypeImage, c.Image)
	case c.Audio != nil:
		return marshalTagged("type", ContentTypeAudio, c.Audio)
	case c.ResourceLink != nil:
		return marshalTagged("type", ContentTypeResourceLink, c.ResourceLink)
	case c.Resource != nil:
		return marshalTagged("type", ContentTypeResource, c.Resource)
	default:
		return nil, errors.New("content block has no variant set")
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (c *ContentBlock) UnmarshalJSON(data []byte) error {
	*c = ContentBlock{}
	if _, ok := c.state.decodeTag(data, "type"); !ok {
		return nil
	}
	switch c.state.tag {
	case ContentTypeText:
		c.Text = &TextContent{}
		c.state.decodeVariant(data, c.Text)
	case ContentTypeImage:
		c.Image = &ImageContent{}
		c.state.decodeVariant(data, c.Image)
	case ContentTypeAudio:
		c.Audio = &AudioContent{}
		c.state.decodeVariant(data, c.Audio)
	case ContentTypeResourceLink:
		c.ResourceLink = &ResourceLink{}
		c.state.decodeVariant(data, c.ResourceLink)
	case ContentTypeResource:
		c.Resource = &EmbeddedResource{}
		c.state.decodeVariant(data, c.Resource)
	}
	c.state.settle(c.hasVariant())
	return nil
}

// Validate implements Validatable
func (c *ContentBlock) Validate(v *Validator) {
	if !c.state.resolved(c.Type()).report(v, "type", contentTypes...) {
		return
	}

	var annotations *Annotations
	switch {
	case c.Text != nil:
		annotations = c.Text.Annotations
	case c.Image != nil:
		v.RequireString("data", c.Image.Data)
		v.RequireString("mimeType", c.Image.MimeType)
		annotations = c.Image.Annotations
	case c.Audio != nil:
		v.RequireString("data", c.Audio.Data)
		v.RequireString("mimeType", c.Audio.MimeType)
		annotations = c.Audio.Annotations
	case c.ResourceLink != nil:
		v.RequireString("uri", c.ResourceLink.URI)
		v.RequireString("name", c.ResourceLink.Name)
		annotations = c.ResourceLink.Annotations
	case c.Resource != nil:
		c.Resource.Resource.Validate(v.Field("resource"))
		annotations = c.Resource.Annotations
	}
	if annotations != nil {
		annotations.Validate(v.Field("annotations"))
	}
}
